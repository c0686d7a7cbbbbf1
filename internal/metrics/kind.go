package metrics

import (
	"github.com/alliefeldman/climatecoachbot/internal/models"
	"github.com/alliefeldman/climatecoachbot/internal/stats"
)

const secondsPerDay = 86400.0

// closedInWindow returns the conversations closed inside w
func closedInWindow(convos []models.Conversation, w models.TimeWindow) []models.Conversation {
	var result []models.Conversation
	for _, c := range convos {
		if c.IsClosed() && w.Contains(*c.ClosedAt) {
			result = append(result, c)
		}
	}
	return result
}

// openedInWindow returns the conversations created inside w
func openedInWindow(convos []models.Conversation, w models.TimeWindow) []models.Conversation {
	var result []models.Conversation
	for _, c := range convos {
		if w.Contains(c.CreatedAt) {
			result = append(result, c)
		}
	}
	return result
}

// applyClosed fills the closed-in-window statistics of m
func applyClosed(m *models.KindMetrics, closed []models.Conversation) {
	closeDays := make([]float64, 0, len(closed))
	comments := make([]int, 0, len(closed))
	for _, c := range closed {
		closeDays = append(closeDays, c.ClosedAt.Sub(c.CreatedAt).Seconds()/secondsPerDay)
		comments = append(comments, c.CommentCount)
		if c.CommentCount == 0 {
			m.NumClosedZeroComments++
		}
	}

	m.NumClosed = len(closed)
	m.AvgCloseTime = stats.Average(closeDays)
	m.MedianCloseTime = stats.Median(closeDays)
	m.AvgCommentsBeforeClose = stats.Average(comments)
	m.MedianCommentsBeforeClose = stats.Median(comments)
}

// applyOpened fills the opened-in-window statistics of m
func applyOpened(m *models.KindMetrics, opened []models.Conversation) {
	comments := make([]int, 0, len(opened))
	for _, c := range opened {
		comments = append(comments, c.CommentCount)
	}

	m.NumOpened = len(opened)
	m.AvgRecentComments = stats.Average(comments)
	m.MedianRecentComments = stats.Median(comments)
}

// uniqueAuthors drops bots, then keeps the first occurrence of each login
func uniqueAuthors(convos []models.Conversation, bots *BotList) []models.Author {
	seen := make(map[string]bool)
	var result []models.Author
	for _, c := range convos {
		login := c.Author.Login
		if login == "" || bots.Contains(login) || seen[login] {
			continue
		}
		seen[login] = true
		result = append(result, c.Author)
	}
	return result
}

// commentsInWindow returns the non-bot comments created inside w
func commentsInWindow(comments []models.Comment, w models.TimeWindow, bots *BotList) []models.Comment {
	var result []models.Comment
	for _, c := range comments {
		if w.Contains(c.CreatedAt) && !bots.Contains(c.Author.Login) {
			result = append(result, c)
		}
	}
	return result
}

// without returns authors minus those in excluded, order preserved
func without(authors, excluded []models.Author) []models.Author {
	if len(excluded) == 0 {
		return authors
	}
	skip := make(map[string]bool, len(excluded))
	for _, a := range excluded {
		skip[a.Login] = true
	}
	var result []models.Author
	for _, a := range authors {
		if !skip[a.Login] {
			result = append(result, a)
		}
	}
	return result
}
