package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
)

// timeValue accepts a timecode sent either as a JSON string or a number.
type timeValue string

func (t *timeValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = timeValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: time must be a string or a number", engine.ErrInvalidTime)
	}
	*t = timeValue(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// videoRef accepts both youtube_url and video_url.
type videoRef struct {
	YouTubeURL string `json:"youtube_url"`
	VideoURL   string `json:"video_url"`
}

func (v videoRef) url() string {
	if v.YouTubeURL != "" {
		return v.YouTubeURL
	}
	return v.VideoURL
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) analyze(c *gin.Context) {
	var req analysis.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters", "status": "error"})
		return
	}
	resp, err := s.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "Internal server error", "status": "error", "details": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": messageFor(err), "status": "error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type chatRequest struct {
	AnalysisID string `json:"analysis_id"`
	Question   string `json:"question"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}
	ans, err := s.svc.Chat(c.Request.Context(), req.AnalysisID, req.Question)
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{
				"error":             "Failed to analyze the question",
				"details":           err.Error(),
				"fallback_response": analysis.FallbackAnswer(),
			})
			return
		}
		c.JSON(status, gin.H{"error": messageFor(err)})
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) gemini(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	// Decode errors fall through to the empty-prompt check so that a
	// missing model is reported first.
	_ = c.ShouldBindJSON(&req)

	obj, err := s.svc.RawPrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, engine.ErrLLMEmpty):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No response from Gemini API"})
		case errors.Is(err, engine.ErrLLMInvalidJSON):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid JSON response from Gemini API"})
		default:
			status := statusFor(err)
			msg := err.Error()
			if status != http.StatusInternalServerError {
				msg = messageFor(err)
			}
			c.JSON(status, gin.H{"error": msg})
		}
		return
	}
	c.JSON(http.StatusOK, obj)
}

type frameRequest struct {
	videoRef
	Time timeValue `json:"time"`
}

func (s *Server) extractFrame(c *gin.Context) {
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing YouTube URL or time"})
		return
	}
	img, err := s.svc.ExtractFrame(c.Request.Context(), req.url(), string(req.Time))
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		switch {
		case errors.Is(err, engine.ErrMissingParams):
			c.JSON(status, gin.H{"error": "Missing YouTube URL or time"})
		case status == http.StatusInternalServerError:
			c.JSON(status, gin.H{"error": "Failed to extract frame", "details": err.Error()})
		default:
			c.JSON(status, gin.H{"error": messageFor(err)})
		}
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/jpeg", img)
}

type summaryRequest struct {
	videoRef
	StartTime timeValue `json:"start_time"`
	EndTime   timeValue `json:"end_time"`
}

func (s *Server) summarizeVideo(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": messageFor(err), "status": "error"})
		return
	}
	sum, err := s.svc.Summarize(c.Request.Context(), analysis.SummaryRequest{
		VideoURL:  req.url(),
		StartTime: string(req.StartTime),
		EndTime:   string(req.EndTime),
	})
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "Failed to summarize video", "status": "error", "details": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": messageFor(err), "status": "error"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) compareAnalytics(c *gin.Context) {
	var req analysis.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters", "status": "error"})
		return
	}
	resp, err := s.svc.Compare(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "Internal server error", "status": "error", "details": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": messageFor(err), "status": "error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type channelRequest struct {
	ChannelURL string `json:"channel_url"`
	CamelURL   string `json:"channelUrl"`
	Limit      int    `json:"limit"`
}

type channelResponse struct {
	Success bool `json:"success"`
	sources.ChannelVideos
	VideoIDs []string `json:"video_ids"`
}

func (s *Server) youtubeChannel(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel URL is required"})
		return
	}
	channelURL := req.ChannelURL
	if channelURL == "" {
		channelURL = req.CamelURL
	}
	videos, err := s.svc.ChannelVideos(c.Request.Context(), channelURL, req.Limit)
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "Failed to list channel videos", "details": err.Error()})
			return
		}
		c.JSON(status, gin.H{"error": messageFor(err)})
		return
	}
	ids := make([]string, 0, len(videos.Videos))
	for _, v := range videos.Videos {
		ids = append(ids, v.VideoID)
	}
	c.JSON(http.StatusOK, channelResponse{Success: true, ChannelVideos: videos, VideoIDs: ids})
}

func (s *Server) listAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	recs, total, err := s.svc.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list analyses", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": recs, "total": total})
}

func (s *Server) getAnalysis(c *gin.Context) {
	rec, err := s.svc.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		status := statusFor(err)
		if status == http.StatusNotFound {
			c.JSON(status, gin.H{"error": "Analysis not found"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
