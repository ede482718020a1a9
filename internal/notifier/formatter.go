package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"NewsSentinel/internal/model"

	"github.com/dustin/go-humanize"
)

var signalEmoji = map[model.SignalType]string{
	model.SignalDividend:   "💰",
	model.SignalEarnings:   "📈",
	model.SignalContract:   "📝",
	model.SignalGovernment: "🏛",
	model.SignalExpansion:  "🏗",
	model.SignalLeadership: "👔",
}

var priorityEmoji = map[model.Priority]string{
	model.PriorityHigh:   "🔴",
	model.PriorityMedium: "🟠",
	model.PriorityLow:    "⚪",
}

var trendEmoji = map[model.TrendDirection]string{
	model.TrendImproving: "📈",
	model.TrendDeclining: "📉",
	model.TrendStable:    "➡️",
	model.TrendVolatile:  "🌪",
}

// FormatSignals lists signals newest first as an HTML Telegram message.
func FormatSignals(signals []model.Signal, now time.Time) string {
	if len(signals) == 0 {
		return "🔕 Không có tín hiệu mới"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Tín hiệu đầu tư</b> (%d)\n\n", len(signals)))
	for _, s := range signals {
		b.WriteString(fmt.Sprintf("%s %s <b>%s</b>\n", priorityEmoji[s.Priority], signalEmoji[s.Type], html.EscapeString(s.Title)))
		if s.Description != "" {
			b.WriteString(html.EscapeString(s.Description) + "\n")
		}
		b.WriteString(fmt.Sprintf("<i>%s · %s</i> · <code>%s</code>\n\n",
			s.Priority, humanize.RelTime(s.DetectedAt, now, "trước", "sau"), s.ID))
	}
	b.WriteString("Dùng /read &lt;id&gt; để đánh dấu đã đọc")
	return b.String()
}

// FormatRunReport summarises one pipeline pass.
func FormatRunReport(r *model.RunReport) string {
	var b strings.Builder
	if r.Err != "" {
		b.WriteString("❌ <b>Phân tích thất bại</b>\n\n")
		b.WriteString(html.EscapeString(r.Err) + "\n\n")
	} else {
		b.WriteString("✅ <b>Phân tích hoàn tất</b>\n\n")
	}
	b.WriteString(fmt.Sprintf("Mã theo dõi: %d\n", r.Symbols))
	b.WriteString(fmt.Sprintf("Bài mới: %d | Trùng: %d | Cache: %d | Lỗi: %d\n",
		r.Inserted, r.Duplicates, r.CacheHits, r.Failed))
	b.WriteString(fmt.Sprintf("Tín hiệu: %d\n", len(r.Signals)))
	if len(r.FetchFails) > 0 {
		b.WriteString(fmt.Sprintf("Không lấy được tin: %s\n", strings.Join(r.FetchFails, ", ")))
	}
	b.WriteString(fmt.Sprintf("Thời gian: %s", r.Duration().Round(time.Second)))
	return b.String()
}

// FormatStatus renders the gate, cache and last-run state.
func FormatStatus(st model.Status, now time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>Trạng thái</b>\n\n")
	rl := st.RateLimit
	b.WriteString(fmt.Sprintf("Rate limit: %d/%d trong %s (còn %d, %s)\n",
		rl.CallsInWindow, rl.Quota, rl.Window, rl.Remaining, rl.Health))
	b.WriteString(fmt.Sprintf("Cache: %d bài (TTL %s)\n", st.Cache.Items, st.Cache.TTL))
	if st.Running {
		b.WriteString("Đang chạy: có\n")
	}
	if st.LastRun == nil {
		b.WriteString("Lần chạy gần nhất: chưa có")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Lần chạy gần nhất: %s, %s bài mới",
		humanize.RelTime(st.LastRun.FinishedAt, now, "trước", "sau"), humanize.Comma(int64(st.LastRun.Inserted))))
	if st.LastRun.Err != "" {
		b.WriteString(" (lỗi)")
	}
	return b.String()
}

// FormatWeeklySummary renders one weekly rollup.
func FormatWeeklySummary(s *model.WeeklySummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗓 <b>%s</b> | %s → %s\n\n", s.Symbol,
		s.WeekStart.Format("02/01"), s.WeekEnd.Format("02/01/2006")))
	b.WriteString(fmt.Sprintf("Xu hướng: %s %s\n", trendEmoji[s.Trend], s.Trend))
	b.WriteString(fmt.Sprintf("Điểm TB: %.1f/10 (%d bài)\n", s.AvgScore, s.TotalArticles))
	b.WriteString(fmt.Sprintf("📈 %d | 📉 %d | ➡️ %d\n", s.BullishCount, s.BearishCount, s.NeutralCount))
	if len(s.Themes) > 0 {
		b.WriteString("\n<b>Chủ đề:</b>\n")
		for _, t := range s.Themes {
			b.WriteString("• " + html.EscapeString(t) + "\n")
		}
	}
	if s.MomentumShift != "" {
		b.WriteString("\n<b>Động lượng:</b> " + html.EscapeString(s.MomentumShift) + "\n")
	}
	if s.Outlook != "" {
		b.WriteString("<b>Triển vọng:</b> " + html.EscapeString(s.Outlook) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Help lists the supported commands.
func Help() string {
	return "Lệnh hỗ trợ:\n" +
		"• /run - chạy phân tích ngay\n" +
		"• /status - trạng thái hệ thống\n" +
		"• /signals [MÃ] - tín hiệu chưa đọc\n" +
		"• /read &lt;id&gt; - đánh dấu đã đọc\n" +
		"• /summary &lt;MÃ&gt; - tổng kết tuần"
}
