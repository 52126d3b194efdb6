package model

import "time"

// LogType discriminates the category of a raw log or alarm record.
type LogType string

const (
	LogTypeProcess  LogType = "process"
	LogTypeFile     LogType = "file"
	LogTypeDomain   LogType = "domain"
	LogTypeNetwork  LogType = "network"
	LogTypeRegistry LogType = "registry"
)

// RawAlarm is a security alarm as received from the search store (spec
// §3). JSON tags match the wire field names the store speaks, per spec
// §6/§3's field lists.
type RawAlarm struct {
	EventID     string `json:"eventId"`
	TraceID     string `json:"traceId"`
	HostAddress string `json:"hostAddress"`

	ProcessGuid       string         `json:"processGuid"`
	ParentProcessGuid string         `json:"parentProcessGuid"`
	AlarmName         string         `json:"alarmName"`
	ThreatSeverity    ThreatSeverity `json:"threatSeverity"`

	StartTime            time.Time `json:"startTime"`
	CollectorReceiptTime time.Time `json:"collectorReceiptTime"`

	LogType LogType `json:"logType"`
	OpType  string  `json:"opType"`

	ParentProcessName string `json:"parentProcessName"`
	ParentUser        string `json:"parentUser"`
	ParentImage       string `json:"parentImage"`
	ParentCommandLine string `json:"parentCommandLine"`

	// Per-category fields (only the ones matching LogType are meaningful).
	FileMd5        string `json:"fileMd5"`
	Filename       string `json:"filename"`
	TargetFilename string `json:"targetFilename"`
	RequestDomain  string `json:"requestDomain"`
	DestAddress    string `json:"destAddress"`
	TargetObject   string `json:"targetObject"`

	// Synthetic is true only for the fabricated alarm backing a virtual
	// parent node; real alarms from the store are never synthetic.
	Synthetic bool `json:"-"`
}

// Time implements Timestamped.
func (a RawAlarm) Time() time.Time { return a.StartTime }

// RawLog is a process or entity log record as received from the search
// store (spec §3). JSON tags mirror RawAlarm's wire field names.
type RawLog struct {
	EventID     string `json:"eventId"`
	TraceID     string `json:"traceId"`
	HostAddress string `json:"hostAddress"`

	ProcessGuid       string    `json:"processGuid"`
	ParentProcessGuid string    `json:"parentProcessGuid"`
	LogType           LogType   `json:"logType"`
	OpType            string    `json:"opType"`
	StartTime         time.Time `json:"startTime"`

	ProcessName        string `json:"processName"`
	ProcessUser        string `json:"processUser"`
	ProcessImage       string `json:"processImage"`
	ProcessCommandLine string `json:"processCommandLine"`

	ParentProcessName string `json:"parentProcessName"`
	ParentUser        string `json:"parentUser"`
	ParentImage       string `json:"parentImage"`
	ParentCommandLine string `json:"parentCommandLine"`

	FileMd5        string `json:"fileMd5"`
	Filename       string `json:"filename"`
	TargetFilename string `json:"targetFilename"`
	RequestDomain  string `json:"requestDomain"`
	DestAddress    string `json:"destAddress"`
	TargetObject   string `json:"targetObject"`

	// Synthetic marks the fabricated process-create record stamped onto a
	// virtual parent node (spec §4.2, §9 "virtual-log marker"); its
	// EventID is prefixed VirtualLogEventID(nodeID).
	Synthetic bool `json:"-"`
}

// Time implements Timestamped.
func (l RawLog) Time() time.Time { return l.StartTime }

// NewVirtualParentLog builds the synthetic process-create record stamped
// onto a virtual parent node (spec §4.2).
func NewVirtualParentLog(nodeID, traceID, hostAddress string) RawLog {
	return RawLog{
		EventID:     VirtualLogEventID(nodeID),
		TraceID:     traceID,
		HostAddress: hostAddress,
		ProcessGuid: nodeID,
		LogType:     LogTypeProcess,
		OpType:      "create",
		Synthetic:   true,
	}
}

// IpMappingRelation carries per-request network-association context
// (spec §3): which ips are network-associated, and which alarm/log event
// first established that association for each ip.
type IpMappingRelation struct {
	IPAndAssociation map[string]bool   `json:"ipAndAssociation"`
	AlarmIPs         map[string]string `json:"alarmIps"` // ip -> eventId
	Logs             map[string]string `json:"logs"`     // ip -> eventId
}

// NewIpMappingRelation returns an IpMappingRelation with initialized maps.
func NewIpMappingRelation() IpMappingRelation {
	return IpMappingRelation{
		IPAndAssociation: make(map[string]bool),
		AlarmIPs:         make(map[string]string),
		Logs:             make(map[string]string),
	}
}

// IsEmpty reports whether the relation carries no association data at all,
// which the orchestrator treats as InputInvalid (spec §7).
func (r IpMappingRelation) IsEmpty() bool {
	return len(r.IPAndAssociation) == 0 && len(r.AlarmIPs) == 0 && len(r.Logs) == 0
}

// AssociatedEventID returns the network-associated event id for an ip, if
// any is recorded, preferring the alarm-sourced id over the log-sourced one
// (spec §4.6 "highest priority").
func (r IpMappingRelation) AssociatedEventID(ip string) (string, bool) {
	if id, ok := r.AlarmIPs[ip]; ok {
		return id, true
	}
	if id, ok := r.Logs[ip]; ok {
		return id, true
	}
	return "", false
}
