package mapgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/budget-sync/internal/domain"
)

// DefaultModelName is the Gemini model used for pairing suggestions.
const DefaultModelName = "gemini-2.0-flash"

// ModelPairing is one pairing suggested by the model.
type ModelPairing struct {
	SourceID      string  `json:"source_id"`
	DestinationID string  `json:"destination_id"`
	Confidence    float64 `json:"confidence"`
}

// ProposeWithModel asks Gemini to pair the two account lists. It is meant
// for names the fuzzy matcher cannot connect ("KiwiSaver" vs "Retirement").
// The client reads GEMINI_API_KEY from the environment.
func ProposeWithModel(ctx context.Context, source, dest []domain.Account) ([]ModelPairing, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("ProposeWithModel: create genai client: %w", err)
	}

	prompt := buildPairingPrompt(source, dest)
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, DefaultModelName, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ProposeWithModel: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ProposeWithModel: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var pairings []ModelPairing
	if err := json.Unmarshal([]byte(clean), &pairings); err != nil {
		return nil, fmt.Errorf("ProposeWithModel: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	// Drop pairings that reference accounts we did not send.
	sourceIDs := accountIDSet(source)
	destIDs := accountIDSet(dest)
	valid := pairings[:0]
	for _, p := range pairings {
		if sourceIDs[p.SourceID] && destIDs[p.DestinationID] {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

func accountIDSet(accounts []domain.Account) map[string]bool {
	set := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		set[a.ID] = true
	}
	return set
}

func buildPairingPrompt(source, dest []domain.Account) string {
	var b strings.Builder
	b.WriteString("You are pairing bank accounts from two systems that refer to the same real accounts under different names.\n\n")
	b.WriteString("Source accounts:\n")
	for _, a := range source {
		fmt.Fprintf(&b, "- id=%s name=%q\n", a.ID, a.Name)
	}
	b.WriteString("\nDestination accounts:\n")
	for _, a := range dest {
		fmt.Fprintf(&b, "- id=%s name=%q\n", a.ID, a.Name)
	}
	b.WriteString("\nPair each source account with at most one destination account. " +
		"Only pair accounts you are confident refer to the same real account. " +
		"Never pair one destination account twice.\n\n" +
		"Return a JSON array of objects with keys \"source_id\", \"destination_id\" " +
		"and \"confidence\" (0.0 to 1.0).\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON array, keep only from the
	// first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
