package pricing

import (
	"fmt"
	"math"
	"os"
	"strings"

	"hopper/internal/fileutil"
	"hopper/internal/services"
)

// minimumDurationMinutes is the floor for size-derived audio durations so a
// tiny file never estimates to zero minutes.
const minimumDurationMinutes = 0.1

// megabytesPerMinute is the assumed audio bitrate heuristic: 1.5 MB of file
// covers roughly one minute of speech.
const megabytesPerMinute = 1.5

// outputTokenRatio is the assumed ratio of summary tokens to input tokens.
const outputTokenRatio = 0.2

// transcriptionPrices maps provider -> model -> USD per audio minute.
var transcriptionPrices = map[string]map[string]float64{
	"openai": {
		"whisper-1": 0.006,
	},
	"deepgram": {
		"nova-2": 0.0043,
	},
}

// TokenRates carries per-million-token USD prices for a chat model.
type TokenRates struct {
	Input  float64
	Output float64
}

// textPrices maps provider -> model -> per-million-token rates.
var textPrices = map[string]map[string]TokenRates{
	"openai": {
		"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		"gpt-4o":      {Input: 2.50, Output: 10.00},
	},
	"anthropic": {
		"claude-3-5-haiku": {Input: 0.80, Output: 4.00},
	},
}

// Estimate is the cost forecast for one processing step.
type Estimate struct {
	DurationMinutes float64
	InputTokens     int64
	OutputTokens    int64
	Cost            float64
}

// EstimateAudioDuration approximates audio minutes from file size.
func EstimateAudioDuration(sizeBytes int64) float64 {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	minutes := sizeMB / megabytesPerMinute
	if minutes < minimumDurationMinutes {
		minutes = minimumDurationMinutes
	}
	return RoundDuration(minutes)
}

// EstimateTokensFromChars approximates token count from character length.
func EstimateTokensFromChars(charCount int) int64 {
	if charCount <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(charCount) / 4))
}

// TranscriptionRate returns the per-minute price for a provider/model pair.
func TranscriptionRate(provider, model string) (float64, error) {
	models, ok := transcriptionPrices[normalizeKey(provider)]
	if ok {
		if rate, ok := models[strings.TrimSpace(model)]; ok {
			return rate, nil
		}
	}
	return 0, services.Wrap(services.ErrConfiguration, "pricing", "transcription rate",
		fmt.Sprintf("no price for %s/%s", provider, model), nil)
}

// TextRates returns the per-million-token prices for a provider/model pair.
func TextRates(provider, model string) (TokenRates, error) {
	models, ok := textPrices[normalizeKey(provider)]
	if ok {
		if rates, ok := models[strings.TrimSpace(model)]; ok {
			return rates, nil
		}
	}
	return TokenRates{}, services.Wrap(services.ErrConfiguration, "pricing", "text rates",
		fmt.Sprintf("no price for %s/%s", provider, model), nil)
}

// TranscriptionCostForDuration prices a transcription of the given length.
func TranscriptionCostForDuration(minutes float64, provider, model string) (Estimate, error) {
	rate, err := TranscriptionRate(provider, model)
	if err != nil {
		return Estimate{}, err
	}
	minutes = RoundDuration(minutes)
	return Estimate{
		DurationMinutes: minutes,
		Cost:            RoundCost(minutes * rate),
	}, nil
}

// TranscriptionCostForFile prices transcribing the audio file at path. The
// provider/model lookup fails hard; a missing or unreadable file returns a
// zero estimate alongside the stat error so callers can degrade gracefully.
func TranscriptionCostForFile(path, provider, model string) (Estimate, error) {
	if _, err := TranscriptionRate(provider, model); err != nil {
		return Estimate{}, err
	}
	size, err := fileutil.Size(path)
	if err != nil {
		return Estimate{}, fmt.Errorf("stat source: %w", err)
	}
	return TranscriptionCostForDuration(EstimateAudioDuration(size), provider, model)
}

// SummarizationCostForText prices summarizing text of the given length.
func SummarizationCostForText(charCount int, provider, model string) (Estimate, error) {
	rates, err := TextRates(provider, model)
	if err != nil {
		return Estimate{}, err
	}
	inputTokens := EstimateTokensFromChars(charCount)
	outputTokens := int64(math.Ceil(float64(inputTokens) * outputTokenRatio))
	cost := float64(inputTokens)/1e6*rates.Input + float64(outputTokens)/1e6*rates.Output
	return Estimate{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         RoundCost(cost),
	}, nil
}

// SummarizationCostForFile prices summarizing the text file at path. The
// provider/model lookup fails hard; an unreadable file returns a zero
// estimate alongside the read error.
func SummarizationCostForFile(path, provider, model string) (Estimate, error) {
	if _, err := TextRates(provider, model); err != nil {
		return Estimate{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Estimate{}, fmt.Errorf("read source: %w", err)
	}
	return SummarizationCostForText(len(data), provider, model)
}

// RoundCost rounds a monetary value to 4 decimal places.
func RoundCost(value float64) float64 {
	return math.Round(value*10000) / 10000
}

// RoundDuration rounds minutes to 2 decimal places.
func RoundDuration(minutes float64) float64 {
	return math.Round(minutes*100) / 100
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
