package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pactex/pactex/internal/config"
	"github.com/pactex/pactex/internal/extract"
	"github.com/pactex/pactex/internal/ingest"
	"github.com/pactex/pactex/internal/retrieval"
)

// --- populate ---

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Load contract documents into the vector store",
	Long: `Load contract documents into the vector store.

Examples:
  pactex populate
  pactex populate --file ./data/contracts.xlsx --force
  pactex populate --pdf-dir ./contracts/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		pdfDir, _ := cmd.Flags().GetString("pdf-dir")
		force, _ := cmd.Flags().GetBool("force")

		if file != "" && pdfDir != "" {
			return fmt.Errorf("--file and --pdf-dir are mutually exclusive")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		var src ingest.RowSource
		if pdfDir != "" {
			src = ingest.NewPDFDirSource(pdfDir)
		} else {
			if file == "" {
				file = cfg.Storage.XLSXPath
			}
			if _, err := os.Stat(file); err != nil {
				return fmt.Errorf("data file not found: %s", file)
			}
			src = ingest.NewXLSXSource(file)
		}

		ctx := cmd.Context()
		b, cleanup, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		printStep("Populating collection %q from %s...", b.vectors.Collection(), src.Name())
		populator := ingest.NewPopulator(b.client, b.vectors, slog.Default())
		if err := populator.Populate(ctx, src, force); err != nil {
			return err
		}

		count, err := b.vectors.Count()
		if err != nil {
			return err
		}
		printSuccess("Collection %q holds %d documents", b.vectors.Collection(), count)
		return nil
	},
}

func init() {
	populateCmd.Flags().String("file", "", "spreadsheet path (defaults to the configured data file)")
	populateCmd.Flags().String("pdf-dir", "", "directory of PDF contracts to ingest instead of a spreadsheet")
	populateCmd.Flags().Bool("force", false, "drop and rebuild the collection")
}

// --- extract ---

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract contract details from a file or stdin",
	Long: `Extract structured contract details and print them as JSON.

Reads the contract text from the given file, or from stdin when the
argument is omitted or "-".

Examples:
  pactex extract ./lease.txt
  cat lease.txt | pactex extract --no-rag`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noRAG, _ := cmd.Flags().GetBool("no-rag")

		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		text, err := readContractText(path)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("contract text is empty")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		ctx := cmd.Context()
		b, cleanup, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		retriever := retrieval.NewRetriever(b.client, b.vectors, cfg.Retrieval.TopK, slog.Default())
		extractor := extract.NewExtractor(b.client, retriever, slog.Default())

		details := extractor.Extract(ctx, text, !noRAG)
		if details == nil {
			printError("No structured data could be extracted")
			return fmt.Errorf("extraction produced no structured data")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	},
}

func init() {
	extractCmd.Flags().Bool("no-rag", false, "skip retrieval of similar contracts")
}

// readContractText reads from the given path, or stdin for "-".
func readContractText(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and vector store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := newAPIClient(cfg)

		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printStatus("Server", "stopped")
			printStatus("Data dir", "%s", cfg.Storage.DataDir)
			return nil
		}
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}

		statusResp, err := client.get(cmd.Context(), "/system/db-status")
		if err == nil {
			var db struct {
				DBType         string `json:"db_type"`
				DBPath         string `json:"db_path"`
				CollectionName string `json:"collection_name"`
				ItemCount      int    `json:"item_count"`
				IsHealthy      bool   `json:"is_healthy"`
			}
			if decodeJSON(statusResp, &db) == nil {
				health := "unhealthy"
				if db.IsHealthy {
					health = "healthy"
				}
				printStatus("Vector store", "%s (%s)", db.DBType, health)
				printStatus("Collection", "%s (%d documents)", db.CollectionName, db.ItemCount)
				printStatus("Database", "%s", db.DBPath)
			}
		}

		printStatus("Embed model", "%s", cfg.Gemini.EmbedModel)
		printStatus("Gen model", "%s", cfg.Gemini.GenModel)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pactex version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pactex version %s\n", version)
	},
}
