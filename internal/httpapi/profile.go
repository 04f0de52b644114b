package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AlexFangSW/typephoon/internal/apperr"
)

// profileStatistics answers GET /profile/statistics (spec §8, grounded on
// original_source/types/responses/profile.py's ProfileStatisticsResponse).
func (h *Handlers) profileStatistics(c *gin.Context) {
	caller, okCaller := h.requireCaller(c)
	if !okCaller {
		return
	}

	stats, err := h.profile.Statistics(c.Request.Context(), caller.UserID, caller.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"best": gin.H{
			"wpm": stats.WPMBest,
		},
		"last_10": gin.H{
			"wpm": stats.WPMAvg10,
			"acc": stats.AccAvg10,
		},
		"average": gin.H{
			"wpm": stats.WPMAvgAll,
			"acc": stats.AccAvgAll,
		},
	})
}

// profileGraph answers GET /profile/graph with every finished game, oldest
// first, for charting (spec §8 "profile graph").
func (h *Handlers) profileGraph(c *gin.Context) {
	caller, okCaller := h.requireCaller(c)
	if !okCaller {
		return
	}

	games, err := h.profile.Graph(c.Request.Context(), caller.UserID, caller.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	data := make([]gin.H, 0, len(games))
	for _, g := range games {
		data = append(data, gin.H{
			"wpm":         g.WPMCorrect,
			"wpm_raw":     g.WPMRaw,
			"acc":         g.Accuracy,
			"finished_at": g.FinishedAt,
		})
	}
	ok(c, http.StatusOK, gin.H{"data": data})
}

// profileHistory answers GET /profile/history?page=&size= with one page of
// finished games (spec §8 "profile history").
func (h *Handlers) profileHistory(c *gin.Context) {
	caller, okCaller := h.requireCaller(c)
	if !okCaller {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		badRequest(c, apperr.CodeValidation, "page must be a positive integer")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 {
		badRequest(c, apperr.CodeValidation, "size must be a positive integer")
		return
	}

	history, err := h.profile.History(c.Request.Context(), caller.UserID, caller.UserType, page, size)
	if err != nil {
		writeError(c, err)
		return
	}

	data := make([]gin.H, 0, len(history.Games))
	for _, g := range history.Games {
		data = append(data, gin.H{
			"game_id":     g.GameID,
			"rank":        g.Rank,
			"wpm":         g.WPMCorrect,
			"wpm_raw":     g.WPMRaw,
			"acc":         g.Accuracy,
			"finished_at": g.FinishedAt,
		})
	}
	ok(c, http.StatusOK, gin.H{
		"total":         history.Total,
		"has_prev_page": history.HasPrevPage,
		"has_next_page": history.HasNextPage,
		"data":          data,
	})
}
