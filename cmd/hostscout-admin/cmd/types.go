package cmd

// listEnvelope mirrors the API's paginated list responses.
type listEnvelope[T any] struct {
	Results []T   `json:"results"`
	Count   int64 `json:"count"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// Credential mirrors the API credential representation. Secret fields
// only ever carry the mask.
type Credential struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CredType  string `json:"cred_type"`
	Username  string `json:"username,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Source mirrors the API source representation.
type Source struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	SourceType            string   `json:"source_type"`
	Hosts                 []string `json:"hosts"`
	ExcludeHosts          []string `json:"exclude_hosts,omitempty"`
	Port                  int      `json:"port"`
	Credentials           []string `json:"credentials"`
	MostRecentConnectScan *string  `json:"most_recent_connect_scan,omitempty"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
}

// ScanTask mirrors the API scan task representation.
type ScanTask struct {
	ID             string  `json:"id"`
	SourceID       *string `json:"source_id,omitempty"`
	ScanType       string  `json:"scan_type"`
	Status         string  `json:"status"`
	StatusMessage  string  `json:"status_message,omitempty"`
	SequenceNumber int     `json:"sequence_number"`
	SystemsCount   int     `json:"systems_count"`
	SystemsScanned int     `json:"systems_scanned"`
	SystemsFailed  int     `json:"systems_failed"`
}

// ScanJob mirrors the API scan job representation.
type ScanJob struct {
	ID             string     `json:"id"`
	ScanType       string     `json:"scan_type"`
	Status         string     `json:"status"`
	StatusMessage  string     `json:"status_message,omitempty"`
	Sources        []string   `json:"sources"`
	Tasks          []ScanTask `json:"tasks"`
	ReportID       *int64     `json:"report_id,omitempty"`
	SystemsCount   *int       `json:"systems_count"`
	SystemsScanned *int       `json:"systems_scanned"`
	SystemsFailed  *int       `json:"systems_failed"`
	StartTime      *string    `json:"start_time,omitempty"`
	EndTime        *string    `json:"end_time,omitempty"`
	CreatedAt      string     `json:"created_at"`
}

// MergeJob mirrors the API response for merge and fact uploads.
type MergeJob struct {
	ID       string `json:"id"`
	ScanType string `json:"scan_type"`
	Status   string `json:"status"`
	ReportID int64  `json:"report_id"`
}
