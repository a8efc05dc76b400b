package task

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned when a required request field is blank.
var ErrMissingField = errors.New("missing required field")

// DefaultDeviceType is used when a request leaves the device type blank.
const DefaultDeviceType = "Cash register"

// Request is a technician-initiated service request. The created task is
// owned by TechnicianID and starts in_progress.
type Request struct {
	ClientName   string `json:"client_name"`
	ClientPhone  string `json:"client_phone"`
	DeviceModel  string `json:"device_model"`
	SerialNumber string `json:"serial_number"`
	DeviceType   string `json:"device_type"`
	Description  string `json:"description"`
	TechnicianID int64  `json:"technician_id"`
}

// Normalize trims every free-text field.
func (r *Request) Normalize() {
	for _, f := range []*string{
		&r.ClientName, &r.ClientPhone, &r.DeviceModel,
		&r.SerialNumber, &r.DeviceType, &r.Description,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate requires client name, device model, and description. All other
// fields are optional.
func (r *Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.ClientName) == "" {
		missing = append(missing, "client_name")
	}
	if strings.TrimSpace(r.DeviceModel) == "" {
		missing = append(missing, "device_model")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// Task converts the request into a new task owned by the submitter.
func (r *Request) Task() *Task {
	owner := r.TechnicianID
	deviceType := r.DeviceType
	if deviceType == "" {
		deviceType = DefaultDeviceType
	}
	return &Task{
		Status:       StatusInProgress,
		Priority:     PriorityNormal,
		CompanyName:  r.ClientName,
		ContactPhone: r.ClientPhone,
		Model:        r.DeviceModel,
		SerialNumber: r.SerialNumber,
		DeviceType:   deviceType,
		Description:  r.Description,
		AssignedTo:   &owner,
	}
}
