package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SvBorde/ResumeBooster/internal/database"
	"github.com/SvBorde/ResumeBooster/internal/llm"
	"github.com/SvBorde/ResumeBooster/internal/resume"
)

const (
	maxJobDescriptionChars = 50000
	maxSelectedSkills      = 20
)

var errMaliciousContent = errors.New("malicious content detected")

// ResumeHandler serves upload, analysis and enhancement of resumes.
type ResumeHandler struct {
	db        *gorm.DB
	llm       *llm.Client
	logger    *slog.Logger
	clamdAddr string
}

// NewResumeHandler constructs the resume handler. An empty clamd address
// disables upload scanning.
func NewResumeHandler(db *gorm.DB, llmClient *llm.Client, logger *slog.Logger, clamdAddr string) *ResumeHandler {
	return &ResumeHandler{
		db:        db,
		llm:       llmClient,
		logger:    logger,
		clamdAddr: clamdAddr,
	}
}

type uploadRequest struct {
	HTMLContent string `json:"html_content"`
}

// Upload validates and stores a new resume owned by the caller.
func (h *ResumeHandler) Upload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			PayloadTooLarge(c, "request body too large")
			return
		}
		BadRequest(c, err.Error())
		return
	}

	logger := loggerFromContext(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	if err := resume.ValidateContent(req.HTMLContent); err != nil {
		h.replyContentError(c, err)
		return
	}

	if err := h.scanContent(req.HTMLContent); err != nil {
		if errors.Is(err, errMaliciousContent) {
			logger.Info("upload rejected by content scan")
			BadRequest(c, "malicious content detected")
			return
		}
		logger.Error("content scan failed", slog.Any("error", err))
		Internal(c, "failed to scan content")
		return
	}

	record := database.Resume{
		UserID:  userID,
		Content: req.HTMLContent,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		logger.Error("create resume failed", slog.Any("error", err))
		Internal(c, "failed to store resume")
		return
	}

	logger.Info("resume uploaded", slog.Uint64("resume_id", uint64(record.ID)))
	c.JSON(http.StatusCreated, gin.H{
		"message": "Resume uploaded successfully",
		"id":      record.ID,
	})
}

type analyzeRequest struct {
	ResumeID       uint   `json:"resume_id"`
	JobDescription string `json:"job_description"`
}

// Analyze runs the skill-match analysis against the caller's resume and
// persists the result. The parsed analysis is returned verbatim.
func (h *ResumeHandler) Analyze(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := loggerFromContext(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("resume_id", uint64(req.ResumeID)),
	)

	record, ok := h.loadOwnedResume(c, req.ResumeID, userID)
	if !ok {
		return
	}

	if req.JobDescription == "" {
		BadRequest(c, "no job description provided")
		return
	}
	if utf8.RuneCountInString(req.JobDescription) > maxJobDescriptionChars {
		BadRequest(c, "job description too long")
		return
	}

	analysis, err := h.llm.AnalyzeJobDescription(ctx, record.Content, req.JobDescription)
	if err != nil {
		logger.Error("analysis failed", slog.Any("error", err))
		Internal(c, "failed to analyze resume")
		return
	}

	matchedJSON, err := json.Marshal(analysis.MatchedSkills)
	if err != nil {
		logger.Error("encode matched skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	missingJSON, err := json.Marshal(analysis.MissingSkills)
	if err != nil {
		logger.Error("encode missing skills failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	jobAnalysis := database.JobAnalysis{
		ResumeID:        record.ID,
		JobDescription:  req.JobDescription,
		MatchPercentage: analysis.MatchPercentage,
		MatchedSkills:   datatypes.JSON(matchedJSON),
		MissingSkills:   datatypes.JSON(missingJSON),
	}
	if err := h.db.WithContext(ctx).Create(&jobAnalysis).Error; err != nil {
		logger.Error("store analysis failed", slog.Any("error", err))
		Internal(c, "failed to store analysis")
		return
	}

	logger.Info("analysis completed",
		slog.Uint64("analysis_id", uint64(jobAnalysis.ID)),
		slog.Float64("match_percentage", analysis.MatchPercentage),
	)
	c.JSON(http.StatusOK, analysis)
}

type enhanceRequest struct {
	ResumeID       uint     `json:"resume_id"`
	SelectedSkills []string `json:"selected_skills"`
}

// Enhance asks the LLM to rewrite the resume with the selected skills and
// overwrites the stored content with the validated result.
func (h *ResumeHandler) Enhance(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req enhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := loggerFromContext(c, h.logger).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("resume_id", uint64(req.ResumeID)),
	)

	record, ok := h.loadOwnedResume(c, req.ResumeID, userID)
	if !ok {
		return
	}

	if len(req.SelectedSkills) == 0 {
		BadRequest(c, "no skills selected")
		return
	}
	if len(req.SelectedSkills) > maxSelectedSkills {
		BadRequest(c, "too many skills selected")
		return
	}

	enhancement, err := h.llm.EnhanceResume(ctx, record.Content, req.SelectedSkills)
	if err != nil {
		logger.Error("enhancement failed", slog.Any("error", err))
		Internal(c, "failed to enhance resume")
		return
	}

	// The rewrite goes through the same safety gate as an upload; the stored
	// resume is only replaced once the new content passes.
	if err := resume.ValidateContent(enhancement.EnhancedContent); err != nil {
		logger.Info("enhanced content rejected", slog.Any("error", err))
		BadRequest(c, "enhanced content failed safety validation")
		return
	}

	if err := h.db.WithContext(ctx).Model(record).Update("content", enhancement.EnhancedContent).Error; err != nil {
		logger.Error("update resume failed", slog.Any("error", err))
		Internal(c, "failed to update resume")
		return
	}

	logger.Info("resume enhanced", slog.Int("skills", len(req.SelectedSkills)))
	c.JSON(http.StatusOK, enhancement)
}

// loadOwnedResume fetches the resume and enforces ownership. A missing row is
// 404; someone else's row is 403. Replies are written on failure.
func (h *ResumeHandler) loadOwnedResume(c *gin.Context, resumeID, userID uint) (*database.Resume, bool) {
	if resumeID == 0 {
		BadRequest(c, "invalid resume id")
		return nil, false
	}

	var record database.Resume
	if err := h.db.WithContext(c.Request.Context()).First(&record, resumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "resume not found")
		} else {
			loggerFromContext(c, h.logger).Error("query resume failed", slog.Any("error", err))
			Internal(c, "failed to query resume")
		}
		return nil, false
	}

	if record.UserID != userID {
		Forbidden(c, "unauthorized")
		return nil, false
	}

	return &record, true
}

func (h *ResumeHandler) replyContentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resume.ErrEmptyContent):
		BadRequest(c, "no HTML content provided")
	case errors.Is(err, resume.ErrContentTooLarge):
		PayloadTooLarge(c, "resume content exceeds size limit")
	case errors.Is(err, resume.ErrUnsafeContent):
		BadRequest(c, err.Error())
	default:
		BadRequest(c, err.Error())
	}
}

// scanContent streams the content through clamd when configured.
func (h *ResumeHandler) scanContent(content string) error {
	if h.clamdAddr == "" {
		return nil
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(bytes.NewReader([]byte(content)), abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errMaliciousContent
		}
	}
	return nil
}
