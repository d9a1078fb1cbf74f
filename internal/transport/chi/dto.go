package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/mode"
	"github.com/kailas-cloud/ragdex/internal/domain/search/request"
)

// searchTestRequest is the wire shape of POST /v1/datasets/search-test.
type searchTestRequest struct {
	DatasetID       string  `json:"datasetId"`
	Text            string  `json:"text"`
	Limit           int     `json:"limit"`
	Similarity      float64 `json:"similarity"`
	SearchMode      string  `json:"searchMode"`
	EmbeddingWeight float64 `json:"embeddingWeight"`

	UsingReRank  bool    `json:"usingReRank"`
	RerankModel  string  `json:"rerankModel"`
	RerankWeight float64 `json:"rerankWeight"`

	UsingExtensionQuery bool   `json:"datasetSearchUsingExtensionQuery"`
	ExtensionModel      string `json:"datasetSearchExtensionModel"`
	ExtensionBg         string `json:"datasetSearchExtensionBg"`

	DeepSearch         bool   `json:"datasetDeepSearch"`
	DeepSearchModel    string `json:"datasetDeepSearchModel"`
	DeepSearchBg       string `json:"datasetDeepSearchBg"`
	DeepSearchMaxTimes int    `json:"datasetDeepSearchMaxTimes"`
}

// searchMatchItem is one scored hit in the response list.
type searchMatchItem struct {
	ID        string  `json:"id"`
	DatasetID string  `json:"datasetId"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// searchTestResponse is the external response shape. Cost facts never leave
// the server; only the summary flags of what actually ran do.
type searchTestResponse struct {
	List       []searchMatchItem `json:"list"`
	Total      int               `json:"total"`
	Duration   string            `json:"duration"`
	SearchMode string            `json:"searchMode"`
	Limit      int               `json:"limit"`
	Similarity float64           `json:"similarity"`

	UsingReRank         bool   `json:"usingReRank"`
	QueryExtensionModel string `json:"queryExtensionModel,omitempty"`
	DeepSearchRounds    int    `json:"deepSearchRounds,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestFromDTO validates and normalizes the wire request.
func requestFromDTO(dto searchTestRequest) (request.Request, error) {
	return request.New(request.Params{
		DatasetID:       dto.DatasetID,
		Query:           dto.Text,
		Limit:           dto.Limit,
		Similarity:      dto.Similarity,
		Mode:            mode.Mode(dto.SearchMode),
		EmbeddingWeight: dto.EmbeddingWeight,

		UsingReRank:  dto.UsingReRank,
		RerankModel:  dto.RerankModel,
		RerankWeight: dto.RerankWeight,

		UsingExtension:      dto.UsingExtensionQuery,
		ExtensionModel:      dto.ExtensionModel,
		ExtensionBackground: dto.ExtensionBg,

		UsingDeepSearch: dto.DeepSearch,
		DeepModel:       dto.DeepSearchModel,
		DeepBackground:  dto.DeepSearchBg,
		DeepMaxRounds:   dto.DeepSearchMaxTimes,
	})
}

// mergeResponse shapes the outcome for the caller. Ordering is preserved
// exactly as the strategy produced it.
func mergeResponse(req *request.Request, out domain.Outcome, elapsed time.Duration) searchTestResponse {
	list := make([]searchMatchItem, len(out.Matches))
	for i := range out.Matches {
		m := &out.Matches[i]
		list[i] = searchMatchItem{
			ID:        m.ID(),
			DatasetID: m.DatasetID(),
			Text:      m.Content(),
			Score:     m.Score(),
		}
	}

	resp := searchTestResponse{
		List:        list,
		Total:       len(list),
		Duration:    fmt.Sprintf("%.3fs", elapsed.Seconds()),
		SearchMode:  string(req.Mode()),
		Limit:       req.Limit(),
		Similarity:  req.Similarity(),
		UsingReRank: out.UsingReRank,
	}
	if out.Extension != nil {
		resp.QueryExtensionModel = out.Extension.Model
	}
	if out.Deep != nil {
		resp.DeepSearchRounds = out.Deep.Rounds
	}
	return resp
}
