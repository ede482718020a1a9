package signals

import (
	"time"

	"NewsSentinel/internal/model"
)

// Rule is one entry of the detector's table. Keywords are matched case-insensitively
// against the article title; Applies then checks sentiment and score.
type Rule struct {
	Type     model.SignalType
	Label    string
	Keywords []string
	Applies  func(a *model.AnalyzedArticle) bool
	Priority func(score int) model.Priority
	TTL      time.Duration
}

const day = 24 * time.Hour

func minScore(n int) func(a *model.AnalyzedArticle) bool {
	return func(a *model.AnalyzedArticle) bool { return a.Score >= n }
}

func bullishMinScore(n int) func(a *model.AnalyzedArticle) bool {
	return func(a *model.AnalyzedArticle) bool {
		return a.Sentiment == model.SentimentBullish && a.Score >= n
	}
}

func fixed(p model.Priority) func(int) model.Priority {
	return func(int) model.Priority { return p }
}

func stepped(threshold int, above, below model.Priority) func(int) model.Priority {
	return func(score int) model.Priority {
		if score >= threshold {
			return above
		}
		return below
	}
}

// table is evaluated top to bottom; the first rule whose keywords and condition both match wins.
var table = []Rule{
	{
		Type:     model.SignalDividend,
		Label:    "Dividend Announcement",
		Keywords: []string{"cổ tức", "dividend", "phân phối", "chia cổ"},
		Applies:  minScore(6),
		Priority: stepped(8, model.PriorityHigh, model.PriorityMedium),
		TTL:      30 * day,
	},
	{
		Type:     model.SignalEarnings,
		Label:    "Strong Earnings Signal",
		Keywords: []string{"doanh thu", "lợi nhuận", "kết quả kinh doanh", "earnings", "revenue", "profit"},
		Applies:  bullishMinScore(7),
		Priority: fixed(model.PriorityHigh),
		TTL:      7 * day,
	},
	{
		Type:     model.SignalContract,
		Label:    "Major Contract/Partnership",
		Keywords: []string{"hợp đồng", "dự án", "contract", "partnership"},
		Applies:  bullishMinScore(7),
		Priority: fixed(model.PriorityMedium),
		TTL:      14 * day,
	},
	{
		Type:     model.SignalGovernment,
		Label:    "Government/Regulatory Action",
		Keywords: []string{"chính phủ", "bộ tài chính", "nhà nước", "thuế", "government", "regulation", "regulator", "policy"},
		Applies:  minScore(7),
		Priority: stepped(9, model.PriorityHigh, model.PriorityMedium),
		TTL:      14 * day,
	},
	{
		Type:     model.SignalExpansion,
		Label:    "Business Expansion",
		Keywords: []string{"mở rộng", "nhà máy", "rót vốn", "khởi công", "expansion", "new plant", "acquisition", "m&a", "mua lại"},
		Applies:  bullishMinScore(6),
		Priority: stepped(8, model.PriorityMedium, model.PriorityLow),
		TTL:      30 * day,
	},
	{
		Type:     model.SignalLeadership,
		Label:    "Leadership Change",
		Keywords: []string{"chủ tịch", "tổng giám đốc", "ceo", "bổ nhiệm", "từ nhiệm", "resign", "appoint"},
		Applies:  minScore(6),
		Priority: stepped(8, model.PriorityMedium, model.PriorityLow),
		TTL:      7 * day,
	},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	return append([]Rule(nil), table...)
}
