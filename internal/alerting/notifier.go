package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratebench/internal/pricing"
)

// Digest summarises one savings run for a user.
type Digest struct {
	UserEmail string
	AsOf      time.Time
	Totals    pricing.SavingsTotals
	// Largest is the record with the highest median savings, nil when there are none.
	Largest *pricing.SavingsRecord
}

// NewDigest builds a digest from a match result.
func NewDigest(userEmail string, asOf time.Time, records []pricing.SavingsRecord) Digest {
	digest := Digest{UserEmail: userEmail, AsOf: asOf, Totals: pricing.Totals(records)}
	for i := range records {
		if digest.Largest == nil || records[i].PotentialSavingsMedian.GreaterThan(digest.Largest.PotentialSavingsMedian) {
			digest.Largest = &records[i]
		}
	}
	return digest
}

// Notifier delivers savings digests.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// TelegramNotifier posts digests through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "digest_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered digest.
func (n *TelegramNotifier) Notify(ctx context.Context, digest Digest) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(digest),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("user_email", digest.UserEmail).
		Time("as_of", digest.AsOf).
		Int("records", digest.Totals.Records).
		Msg("savings digest sent")
	return nil
}

func renderMessage(d Digest) string {
	builder := strings.Builder{}
	builder.WriteString("[Rate Benchmark]\n")
	builder.WriteString(fmt.Sprintf("User: %s\n", d.UserEmail))
	builder.WriteString(fmt.Sprintf("As of: %s\n", d.AsOf.Format(pricing.DateLayout)))
	builder.WriteString(fmt.Sprintf("Comparisons: %d\n", d.Totals.Records))
	if d.Totals.Records == 0 {
		builder.WriteString("No contracted rate matched market data for this day.\n")
		return builder.String()
	}
	builder.WriteString(fmt.Sprintf("Savings vs min: %s\n", d.Totals.Min.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Savings vs p10: %s\n", d.Totals.P10.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Savings vs median: %s\n", d.Totals.Median.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Savings vs p90: %s\n", d.Totals.P90.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Savings vs max: %s\n", d.Totals.Max.StringFixed(2)))
	if d.Largest != nil {
		builder.WriteString(fmt.Sprintf("Largest gap: %s -> %s, median %s vs yours %s\n",
			d.Largest.Origin,
			d.Largest.Destination,
			d.Largest.MedianPrice.StringFixed(2),
			d.Largest.UserPrice.StringFixed(2),
		))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
