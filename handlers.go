package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// respond writes the JSON envelope every endpoint answers with.
func respond(c *gin.Context, success bool, message string, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: success, Message: message, Data: data})
}

// apiHandler dispatches the public read-side actions.
func (app *App) apiHandler(c *gin.Context) {
	switch c.Query("action") {
	case "stats":
		app.handleStats(c)
	case "data":
		app.handleData(c)
	case "leaderboard":
		app.handleLeaderboard(c)
	default:
		respond(c, false, MsgInvalidAction, nil)
	}
}

// adminHandler dispatches the write/admin-side actions.
func (app *App) adminHandler(c *gin.Context) {
	switch c.Query("action") {
	case "verify":
		app.handleVerify(c)
	case "upload":
		app.handleUpload(c)
	case "info":
		app.handleInfo(c)
	case "download":
		app.handleDownload(c)
	default:
		respond(c, false, MsgInvalidAction, nil)
	}
}

// handleStats serves the aggregate statistics payload. The computed payload
// is cached per dataset generation (size + modification time), so repeated
// polling does not reparse the file until it is replaced.
func (app *App) handleStats(c *gin.Context) {
	content, info, err := app.Store.Read()
	if err != nil {
		respond(c, false, MsgCSVNotFound, nil)
		return
	}

	cacheKey := fmt.Sprintf("stats:%d:%d", info.Modified.UnixNano(), info.Size)
	if cached, found := app.StatsCache.Get(cacheKey); found {
		respond(c, true, "Statistics retrieved", cached.(Statistics))
		return
	}

	stats := aggregate(parseRecords(string(content)))
	app.StatsCache.SetDefault(cacheKey, stats)
	respond(c, true, "Statistics retrieved", stats)
}

// handleData serves the raw dataset, emails included, to machine clients
// holding the day-scoped credential. Bearer tokens are not accepted here.
func (app *App) handleData(c *gin.Context) {
	if !app.Auth.AuthorizeMachine(c.GetHeader("Authorization")) {
		respond(c, false, "Unauthorized access", nil)
		return
	}

	content, info, err := app.Store.Read()
	if err != nil {
		respond(c, false, MsgCSVNotFound, nil)
		return
	}

	respond(c, true, "Data retrieved", gin.H{
		"content":  string(content),
		"size":     info.Size,
		"modified": info.Modified.Unix(),
	})
}

// handleLeaderboard serves the sanitized dataset to the public page. Raw
// content never leaves this path: the email column is blanked before the
// bytes reach the response. Subject to the per-client sliding window.
func (app *App) handleLeaderboard(c *gin.Context) {
	if !app.Limiter.Allow(c.ClientIP()) {
		respond(c, false, MsgRateLimited, nil)
		return
	}

	content, info, err := app.Store.Read()
	if err != nil {
		respond(c, false, MsgDataNotAvailable, nil)
		return
	}

	respond(c, true, "Data retrieved", gin.H{
		"content":  sanitizeForPublic(string(content)),
		"modified": info.Modified.Unix(),
	})
}

// handleVerify checks the admin secret and issues a bearer token. Guarded by
// a per-IP token bucket so the shared secret cannot be brute forced.
func (app *App) handleVerify(c *gin.Context) {
	if !app.getVerifyLimiter(c.ClientIP()).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, APIResponse{Success: false, Message: MsgRateLimited})
		return
	}

	token, err := app.Auth.Login(c.PostForm("password"), c.ClientIP())
	if err != nil {
		respond(c, false, MsgInvalidPassword, nil)
		return
	}

	respond(c, true, "Password verified", gin.H{
		"token":   token.Value,
		"expires": token.Expires,
	})
}

// bearerToken extracts the admin token from the form, the query string, or an
// Authorization header with a case-insensitive bearer prefix, in that order.
func bearerToken(c *gin.Context) string {
	if token := c.PostForm("token"); token != "" {
		return token
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

// handleUpload replaces the live dataset. Gates run in order: bearer token,
// .csv extension, size ceiling, structural validation, then the
// snapshot-then-swap install. A failed backup aborts before the live file is
// touched.
func (app *App) handleUpload(c *gin.Context) {
	if !app.Auth.Authorize(bearerToken(c), c.ClientIP()) {
		respond(c, false, MsgUnauthorized, nil)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respond(c, false, MsgNoFileUploaded, nil)
		return
	}

	if strings.ToLower(filepath.Ext(file.Filename)) != ".csv" {
		respond(c, false, MsgNotCSV, nil)
		return
	}

	if file.Size > MaxUploadBytes {
		respond(c, false, MsgFileTooLarge, nil)
		return
	}

	src, err := file.Open()
	if err != nil {
		respond(c, false, MsgNoFileUploaded, nil)
		return
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil || len(content) > MaxUploadBytes {
		respond(c, false, MsgFileTooLarge, nil)
		return
	}

	if !validateStructure(string(content)) {
		respond(c, false, MsgInvalidCSV, nil)
		return
	}

	info, err := app.Store.Replace(content)
	if err != nil {
		logWarn("Dataset replace failed: %v", err)
		if errors.Is(err, ErrBackupFailed) {
			respond(c, false, MsgBackupFailed, nil)
		} else {
			respond(c, false, MsgSaveFailed, nil)
		}
		return
	}

	logInfo("Dataset replaced: %d bytes, %d rows", info.Size, info.RowCount)
	respond(c, true, "File uploaded successfully", gin.H{
		"filename": DatasetFilename,
		"size":     info.Size,
		"modified": info.Modified.Unix(),
	})
}

// handleInfo reports the live dataset's metadata without auth, answering with
// zero values instead of an error while no dataset exists yet.
func (app *App) handleInfo(c *gin.Context) {
	info, err := app.Store.Info()
	if err != nil {
		respond(c, true, "File info retrieved", gin.H{
			"filename":  DatasetFilename,
			"size":      0,
			"modified":  0,
			"userCount": 0,
		})
		return
	}

	respond(c, true, "File info retrieved", gin.H{
		"filename":  DatasetFilename,
		"size":      info.Size,
		"modified":  info.Modified.Unix(),
		"userCount": info.RowCount,
	})
}

// handleDownload streams the live dataset to an authenticated admin as a file
// attachment named with the current timestamp.
func (app *App) handleDownload(c *gin.Context) {
	if !app.Auth.Authorize(bearerToken(c), c.ClientIP()) {
		respond(c, false, MsgUnauthorized, nil)
		return
	}

	content, _, err := app.Store.Read()
	if err != nil {
		respond(c, false, MsgCSVNotFound, nil)
		return
	}

	filename := BackupPrefix + time.Now().Format(BackupTimestamp) + ".csv"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", content)
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	rows := 0
	if info, err := app.Store.Info(); err == nil {
		rows = info.RowCount
	}
	uptime := time.Since(app.StartTime)
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"env":          map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"dataset_rows": rows,
		"uptime":       formatUptime(uptime),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
