package account

import (
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/usage"
)

// Hash field names for account, api-key, and session records.
const (
	fieldAccountID   = "account_id"
	fieldMemberID    = "member_id"
	fieldName        = "name"
	fieldBalance     = "balance_millipoints"
	fieldUsage       = "usage_millipoints"
	fieldKeyUsage    = "usage_millipoints"
	fieldKeyDisabled = "disabled"
)

// ledgerEntryDTO is the stored JSON shape of a usage ledger entry.
type ledgerEntryDTO struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	MemberID    string    `json:"member_id"`
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Model       string    `json:"model"`
	InputTokens int       `json:"input_tokens"`
	Millipoints int64     `json:"millipoints"`
	CreatedAt   time.Time `json:"created_at"`

	ExtensionModel        string `json:"extension_model,omitempty"`
	ExtensionInputTokens  int    `json:"extension_input_tokens,omitempty"`
	ExtensionOutputTokens int    `json:"extension_output_tokens,omitempty"`
	DeepModel             string `json:"deep_model,omitempty"`
	DeepInputTokens       int    `json:"deep_input_tokens,omitempty"`
	DeepOutputTokens      int    `json:"deep_output_tokens,omitempty"`
	DeepRounds            int    `json:"deep_rounds,omitempty"`
}

func entryToDTO(e usage.LedgerEntry) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:                    e.ID,
		AccountID:             e.AccountID,
		MemberID:              e.MemberID,
		Source:                string(e.Source),
		Kind:                  string(e.Kind),
		Model:                 e.Model,
		InputTokens:           e.InputTokens,
		Millipoints:           e.Millipoints,
		CreatedAt:             e.CreatedAt,
		ExtensionModel:        e.ExtensionModel,
		ExtensionInputTokens:  e.ExtensionInputTokens,
		ExtensionOutputTokens: e.ExtensionOutputTokens,
		DeepModel:             e.DeepModel,
		DeepInputTokens:       e.DeepInputTokens,
		DeepOutputTokens:      e.DeepOutputTokens,
		DeepRounds:            e.DeepRounds,
	}
}

func callerFromFields(fields map[string]string, apiKey string) domain.Caller {
	return domain.Caller{
		AccountID: fields[fieldAccountID],
		MemberID:  fields[fieldMemberID],
		APIKey:    apiKey,
	}
}
