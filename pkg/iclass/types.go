package iclass

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the layout of every timestamp exchanged with iClass.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the layout of the dateStr query parameter.
const DateLayout = "20060102"

// FlexString decodes a JSON string, number or boolean into its textual form.
// JSON null decodes to the empty string. iClass is inconsistent about
// quoting identifiers and coordinates, so every such field uses FlexString.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

func (f FlexString) String() string { return string(f) }

// Course is one entry of the student's daily schedule.
type Course struct {
	ID                 FlexString `json:"id"`
	CourseSchedID      FlexString `json:"courseSchedId"`
	CourseID           FlexString `json:"courseId"`
	CourseName         string     `json:"courseName"`
	ClassroomName      string     `json:"classroomName"`
	ClassroomLongitude FlexString `json:"classroomLongitude"`
	ClassroomLatitude  FlexString `json:"classroomLatitude"`
	TeacherName        string     `json:"teacherName"`
	TeachBuildName     string     `json:"teachBuildName"`
	SignStatus         FlexString `json:"signStatus"`
	ClassBeginTime     string     `json:"classBeginTime"`
	ClassEndTime       string     `json:"classEndTime"`
}

// ScheduleID returns the course schedule identifier used for check-in:
// courseSchedId when present, otherwise id.
func (c Course) ScheduleID() string {
	if s := strings.TrimSpace(string(c.CourseSchedID)); s != "" {
		return s
	}
	return strings.TrimSpace(string(c.ID))
}

// Session is the authenticated state returned by Login.
type Session struct {
	SessionID string
	UserID    string
	Name      string
}

// SignPolicy holds the before/after minute offsets published by the
// policy endpoint. Has* report whether the endpoint supplied the value.
type SignPolicy struct {
	BeforeMinutes int
	AfterMinutes  int
	HasBefore     bool
	HasAfter      bool
}

// Resolve fills missing offsets with the given defaults.
func (p SignPolicy) Resolve(defBefore, defAfter int) (before, after int) {
	before, after = defBefore, defAfter
	if p.HasBefore {
		before = p.BeforeMinutes
	}
	if p.HasAfter {
		after = p.AfterMinutes
	}
	return before, after
}

// SocketInfo is the live classroom information for the student's current
// course. Any field may be empty.
type SocketInfo struct {
	ID                 FlexString `json:"id"`
	CourseSchedID      FlexString `json:"courseSchedId"`
	ClassroomLongitude FlexString `json:"classroomLongitude"`
	ClassroomLatitude  FlexString `json:"classroomLatitude"`
}

// MachineInfo is the device string the Android app reports.
const MachineInfo = "Android"

// SignPayload is the form body of a check-in submission. The field names
// and formats are the wire contract of the check-in endpoint.
type SignPayload struct {
	UserID        string
	CourseSchedID string
	RouterInfo    string
	Longitude     float64
	Latitude      float64
	MachineInfo   string
	SignTime      time.Time
}

// Values encodes the payload as the form the endpoint expects.
func (p SignPayload) Values() url.Values {
	machine := p.MachineInfo
	if machine == "" {
		machine = MachineInfo
	}
	v := url.Values{}
	v.Set("id", p.UserID)
	v.Set("courseSchedId", p.CourseSchedID)
	v.Set("routerInfo", p.RouterInfo)
	v.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	v.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	v.Set("machineInfo", machine)
	v.Set("signTime", p.SignTime.Format(TimeLayout))
	return v
}

// SignResult is the decoded response to a check-in submission.
type SignResult struct {
	HTTPStatus int
	Status     string
	Message    string
	Result     json.RawMessage
}

// OK reports whether the service accepted the check-in.
func (r SignResult) OK() bool { return r.Status == statusOK }

// envelope is the common shape of iClass JSON responses.
type envelope struct {
	Status  FlexString      `json:"STATUS"`
	ErrMsg  string          `json:"ERRMSG"`
	ErrCode FlexString      `json:"ERRCODE"`
	Result  json.RawMessage `json:"result"`
}

const statusOK = "0"

func (e envelope) hasResult() bool {
	r := bytes.TrimSpace(e.Result)
	return len(r) > 0 && string(r) != "null"
}
