package analysissvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
)

const analysisPrompt = `You are an academic advisor. Given the grade records below,
write a short performance analysis for student %s: overall trend, strong and weak
subjects, and one concrete suggestion. Keep it under 200 words.

Grade records:
%s`

type geminiService struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ core.AnalysisService = (*geminiService)(nil)

func NewGeminiService(ctx context.Context) (*geminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(core.Conf.GeminiAPIKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	model.SetTemperature(0.3)
	return &geminiService{client: client, model: model}, nil
}

func (svc *geminiService) Close() error { return svc.client.Close() }

func (svc *geminiService) AnalyzeGrades(ctx context.Context, studentName string, rows []string) (string, error) {
	prompt := fmt.Sprintf(analysisPrompt, studentName, strings.Join(rows, "\n"))
	resp, err := svc.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(err, "generating grade analysis")
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty analysis response")
	}
	return sb.String(), nil
}

// EchoService is a deterministic stand-in used in tests and environments
// without a Gemini API key.
type EchoService struct{}

var _ core.AnalysisService = (*EchoService)(nil)

func (EchoService) AnalyzeGrades(_ context.Context, studentName string, rows []string) (string, error) {
	return fmt.Sprintf("Analysis for %s over %d grade records is not available offline.", studentName, len(rows)), nil
}
