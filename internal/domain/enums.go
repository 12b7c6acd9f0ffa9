package domain

// ImportStatus is the lifecycle of a load attempt.
type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// Feature kind names as they appear in the source GML (namespace stripped).
const (
	KindTransaction = "RCN_Transakcja"
	KindDocument    = "RCN_Dokument"
	KindProperty    = "RCN_Nieruchomosc"
	KindParcel      = "RCN_Dzialka"
	KindBuilding    = "RCN_Budynek"
	KindUnit        = "RCN_Lokal"
	KindAddress     = "RCN_Adres"
)

// Skip reasons reported when a load attempt is short-circuited by the
// duplicate checks.
const (
	SkipAlreadyImported    = "already_imported"
	SkipSuspectedDuplicate = "suspected_duplicate"
)
