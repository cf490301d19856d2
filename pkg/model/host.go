package model

// HostProfile describes the machine being provisioned. Computed once at startup.
type HostProfile struct {
	Architecture         string `json:"architecture"`
	DistributionID       string `json:"distributionId"`
	DistributionCodename string `json:"distributionCodename"`
	Eligible             bool   `json:"eligible"`
}
