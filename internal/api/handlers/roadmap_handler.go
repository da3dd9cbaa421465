package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/careerpath/internal/models"
	"github.com/yoockh/careerpath/internal/services"
	"github.com/yoockh/careerpath/internal/utils"
)

type RoadmapHandler struct {
	svc services.RoadmapService
}

func NewRoadmapHandler(svc services.RoadmapService) *RoadmapHandler {
	return &RoadmapHandler{svc: svc}
}

type roadmapResponse struct {
	Roadmap models.Roadmap `json:"roadmap"`
}

// Generate expects multipart fields "resume" (pdf) and "role".
func (h *RoadmapHandler) Generate(c *gin.Context) {
	const op = "RoadmapHandler.Generate"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("resume")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'resume'", err))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	rm, err := h.svc.Generate(c.Request.Context(), services.GenerateRequest{
		UserID:     userID,
		Filename:   fh.Filename,
		Document:   file,
		TargetRole: c.PostForm("role"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, roadmapResponse{Roadmap: rm})
}

func (h *RoadmapHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rm, err := h.svc.GetRoadmap(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, roadmapResponse{Roadmap: rm})
}

func (h *RoadmapHandler) ToggleWeek(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RoadmapHandler.ToggleWeek", "week must be a positive integer", err))
		return
	}

	rm, err := h.svc.ToggleWeek(c.Request.Context(), userID, week)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, roadmapResponse{Roadmap: rm})
}
