package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"instagrid/internal/analysis"
	"instagrid/internal/domain/models"
	"instagrid/internal/imaging"
	"instagrid/internal/lib/logger/sl"
	"instagrid/internal/transport/http/dto"
)

// Completer is the slice of the completion client the service needs.
type Completer interface {
	CompleteJSON(ctx context.Context, system string, user []analysis.ContentPart, out any) error
}

// Captions are bilingual: a per-image specific part followed by a shared
// thread line, French block then English block.
const gridAnalysisPrompt = `Tu es un stratège de contenu Instagram. On te montre 3 images destinées à former une ligne cohérente sur un profil (affichées de gauche à droite).
%s
%s

Réponds uniquement en JSON avec les champs:
"suggested_order" (indices 0-2, ordre visuel gauche->droite recommandé),
"captions" (3 légendes bilingues FR puis EN, une par image dans l'ordre d'origine),
"individual_scores" (note 0-100 par image),
"hashtags" (par image: {"broad": [...], "niche": [...], "specific": [...]}),
"coherence_score" (0-100), "coherence_reasoning",
"common_thread_fr", "common_thread_en" (la phrase commune aux 3 légendes).`

const regeneratePrompt = `Tu réécris la partie spécifique d'une légende Instagram bilingue. La partie commune reste inchangée.
Fil rouge: %s
Contexte de l'image: %s
Partie commune FR: %s
Partie commune EN: %s
Versions précédentes à ne pas répéter:
%s

Réponds uniquement en JSON: {"specific_fr": "...", "specific_en": "..."}.`

const analyzeUserText = "Analyse ces 3 images pour une stratégie de grille Instagram. " +
	"La photo 3 (Droite) sera postée en premier, puis la 2 (Milieu), puis la 1 (Gauche), " +
	"afin qu'elles apparaissent de gauche à droite sur le profil."

var positionLabels = [models.GridSize]string{"Image 1 (Gauche)", "Image 2 (Milieu)", "Image 3 (Droite)"}

// AnalysisService asks a vision-capable completion model to score a grid and
// to rewrite captions. One transparent retry on transport failures; anything
// else surfaces to the caller.
type AnalysisService struct {
	log *slog.Logger
	llm Completer
}

func NewAnalysisService(log *slog.Logger, llm Completer) *AnalysisService {
	return &AnalysisService{log: log, llm: llm}
}

// AnalyzeGrid scores three images as one grid row. imageContexts may be empty
// or hold one hint per image in visual order.
func (s *AnalysisService) AnalyzeGrid(ctx context.Context, images [][]byte, commonContext string, imageContexts []string) (*models.AnalysisResult, error) {
	const op = "analysis_service.AnalyzeGrid"

	log := s.log.With(slog.String("op", op))

	if len(images) != models.GridSize {
		return nil, models.ErrInvalidSlotCount
	}

	parts := []analysis.ContentPart{analysis.TextPart(analyzeUserText)}
	for idx, raw := range images {
		compressed := imaging.Compress(raw)
		parts = append(parts,
			analysis.TextPart("--- "+positionLabels[idx]+" ---"),
			analysis.ImagePart(base64.StdEncoding.EncodeToString(compressed)),
		)
	}

	system := fmt.Sprintf(gridAnalysisPrompt,
		threadLine(commonContext),
		contextLines(imageContexts),
	)

	var result models.AnalysisResult
	if err := s.complete(ctx, system, parts, &result); err != nil {
		log.Error("grid analysis failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	normalizeOrder(&result)

	log.Info("grid analyzed", slog.Int("coherence_score", result.CoherenceScore))
	return &result, nil
}

// RegenerateCaption produces a fresh full caption for one image, keeping the
// shared thread intact and avoiding previously shown versions.
func (s *AnalysisService) RegenerateCaption(ctx context.Context, req dto.RegenerateCaptionRequest) (string, error) {
	const op = "analysis_service.RegenerateCaption"

	history := "Aucune pour le moment."
	if len(req.CaptionsHistory) > 0 {
		var b strings.Builder
		for _, c := range req.CaptionsHistory {
			b.WriteString("- " + c + "\n")
		}
		history = strings.TrimRight(b.String(), "\n")
	}

	system := fmt.Sprintf(regeneratePrompt,
		orDefault(req.CommonContext, "Aucun fil rouge spécifique."),
		orDefault(req.IndividualContext, "Aucun contexte spécifique."),
		req.CommonThreadFR,
		req.CommonThreadEN,
		history,
	)

	parts := []analysis.ContentPart{
		analysis.TextPart("Régénère la partie spécifique de la légende."),
		analysis.ImagePart(req.ImageBase64),
	}

	var out struct {
		SpecificFR string `json:"specific_fr"`
		SpecificEN string `json:"specific_en"`
	}
	if err := s.complete(ctx, system, parts, &out); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	caption := fmt.Sprintf("%s %s\n\n%s %s",
		out.SpecificFR, req.CommonThreadFR,
		out.SpecificEN, req.CommonThreadEN,
	)
	return caption, nil
}

func (s *AnalysisService) complete(ctx context.Context, system string, parts []analysis.ContentPart, out any) error {
	err := s.llm.CompleteJSON(ctx, system, parts, out)
	if err == nil || !errors.Is(err, analysis.ErrUnavailable) {
		return err
	}
	s.log.Warn("completion call failed, retrying once", sl.Err(err))
	return s.llm.CompleteJSON(ctx, system, parts, out)
}

// normalizeOrder converts a 1-based suggested order to 0-based when the model
// ignores the indexing instruction.
func normalizeOrder(result *models.AnalysisResult) {
	oneBased := false
	for _, idx := range result.SuggestedOrder {
		if idx > models.GridSize-1 {
			oneBased = true
		}
	}
	if !oneBased {
		return
	}
	for i := range result.SuggestedOrder {
		result.SuggestedOrder[i]--
	}
}

func threadLine(commonContext string) string {
	if commonContext == "" {
		return ""
	}
	return "IMPORTANT - FIL ROUGE / THÈME COMMUN : " + commonContext
}

func contextLines(imageContexts []string) string {
	var b strings.Builder
	for idx, c := range imageContexts {
		if idx >= models.GridSize || c == "" {
			continue
		}
		fmt.Fprintf(&b, "Contexte pour %s : %s\n", positionLabels[idx], c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
