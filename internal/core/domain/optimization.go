package domain

type QueryOptimizationResult struct {
	Original             string   `json:"original"`
	Rewritten            string   `json:"rewritten"`
	MultiQueries         []string `json:"multi_queries"`
	Expanded             string   `json:"expanded"`
	HypotheticalDocument string   `json:"-"`
	DecomposedSubQueries []string `json:"decomposed_sub_queries,omitempty"`
}

const (
	IntentHowTo             = "how_to"
	IntentTroubleshooting   = "troubleshooting"
	IntentBilling           = "billing"
	IntentAccountManagement = "account_management"
	IntentUnknown           = "unknown"
)
