package extract

// Details holds the six contract fields produced by extraction. Each field
// is independently nullable; all six keys are always present in the
// marshalled JSON (null, never absent).
type Details struct {
	AgreementValue     *float64 `json:"agreement_value"`
	AgreementStartDate *string  `json:"agreement_start_date"`
	AgreementEndDate   *string  `json:"agreement_end_date"`
	RenewalNoticeDays  *int     `json:"renewal_notice_days"`
	PartyOne           *string  `json:"party_one"`
	PartyTwo           *string  `json:"party_two"`
}
