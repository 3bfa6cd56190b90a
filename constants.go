package main

// Dataset file layout constants
const (
	DatasetFilename = "data.csv"
	BackupDirName   = "backups"
	BackupPrefix    = "data_backup_"
	BackupTimestamp = "2006-01-02_15-04-05"
	TokensFilename  = "tokens.json"
)

// Upload policy constants
const (
	MaxUploadBytes = 10 * 1024 * 1024 // 10 MiB
)

// Statistics policy constants
const (
	HighBadgeThreshold = 15 // badge count that marks a "high achiever"
)

// Rate limit policy constants for the public leaderboard action
const (
	RateWindowSeconds = 60
	RateWindowCeiling = 60
)

// Route constants
const (
	RouteAPI    = "/api"
	RouteAdmin  = "/admin"
	RouteHealth = "/healthz"
)

// Envelope message constants
const (
	MsgInvalidAction    = "Invalid action"
	MsgUnauthorized     = "Unauthorized"
	MsgInvalidPassword  = "Invalid password"
	MsgRateLimited      = "Rate limit exceeded. Please try again later."
	MsgDataNotAvailable = "Data not available"
	MsgCSVNotFound      = "CSV file not found"
	MsgNoFileUploaded   = "No file uploaded or upload error"
	MsgNotCSV           = "Only CSV files are allowed"
	MsgFileTooLarge     = "File size exceeds 10MB limit"
	MsgInvalidCSV       = "Invalid CSV format. Please check your file structure."
	MsgBackupFailed     = "Failed to create backup"
	MsgSaveFailed       = "Failed to save uploaded file"
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)

type contextKey string
