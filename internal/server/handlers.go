package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/p-n-ai/lexivisual/internal/adapt"
	"github.com/p-n-ai/lexivisual/internal/assessment"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type textRequest struct {
	Text string `json:"text"`
}

type answersRequest struct {
	Answers map[string]string `json:"answers"`
}

type exportRequest struct {
	Answers  map[string]string `json:"answers"`
	Analysis string            `json:"analysis"`
}

type analysisResponse struct {
	Analysis string `json:"analysis"`
}

type audioResponse struct {
	AudioContent string `json:"audioContent"`
}

type questionsResponse struct {
	Questions []assessment.Question `json:"questions"`
}

func convertFailureMessage(err error) string {
	var se *adapt.StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case adapt.StageSummarize:
			return "Failed to generate summary"
		case adapt.StageImagePrompt:
			return "Failed to generate image prompt"
		case adapt.StageImage:
			return "Failed to generate image"
		}
	}
	return "Failed to convert content"
}

func (s *Server) handleConvertContent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req textRequest
	if err := s.decodeRequest(w, r, textSchema, &req); err != nil {
		s.record(r, start, err, outcomeFlags{})
		return
	}

	res, err := s.adapter.AdaptObserved(r.Context(), req.Text, nil)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError, convertFailureMessage(err))
		s.record(r, start, err, outcomeFlags{})
		return
	}

	writeJSON(w, http.StatusOK, res)
	s.record(r, start, nil, outcomeFlags{
		usedFallback:   res.UsedFallback.Any(),
		imageGenerated: res.GeneratedImage != nil,
	})
}

func (s *Server) handleAnalyzeAssessment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req answersRequest
	if err := s.decodeRequest(w, r, answersSchema, &req); err != nil {
		s.record(r, start, err, outcomeFlags{})
		return
	}

	report, err := s.scorer.Score(r.Context(), req.Answers)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError, "Failed to analyze assessment")
		s.record(r, start, err, outcomeFlags{})
		return
	}

	writeJSON(w, http.StatusOK, analysisResponse{Analysis: report.Analysis})
	s.record(r, start, nil, outcomeFlags{usedFallback: report.UsedFallback})
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req textRequest
	if err := s.decodeRequest(w, r, textSchema, &req); err != nil {
		s.record(r, start, err, outcomeFlags{})
		return
	}

	audio, err := s.narrator.Narrate(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest, "Failed to generate audio")
		s.record(r, start, err, outcomeFlags{})
		return
	}

	writeJSON(w, http.StatusOK, audioResponse{AudioContent: audio})
	s.record(r, start, nil, outcomeFlags{})
}

func (s *Server) handleExportAssessment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req exportRequest
	if err := s.decodeRequest(w, r, exportSchema, &req); err != nil {
		s.record(r, start, err, outcomeFlags{})
		return
	}

	data, err := assessment.ExportXLSX(s.questions, req.Answers, req.Analysis)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError, msgInternal)
		s.record(r, start, err, outcomeFlags{})
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="lexivisual-assessment.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	s.record(r, start, nil, outcomeFlags{})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var qs []assessment.Question
	if s.questions != nil {
		qs = s.questions.Questions()
	}
	if qs == nil {
		qs = []assessment.Question{}
	}
	writeJSON(w, http.StatusOK, questionsResponse{Questions: qs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "unavailable"
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}
