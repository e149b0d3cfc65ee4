// internal/model/analytics.go
package model

type VariantStats struct {
	Variant           string `json:"variant"`
	Total             int    `json:"total"`
	RepliedConnection int    `json:"replied_connection"`
	RepliedFollowup   int    `json:"replied_followup"`
}

type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

type Analytics struct {
	TotalContacts      int            `json:"total_contacts"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
	VariantPerformance []VariantStats `json:"variant_performance"`
	TopCompanies       []CompanyCount `json:"top_companies"`
}
