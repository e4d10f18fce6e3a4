// Package support stores the help requests operators open from the
// dashboard.
package support

import (
	"strings"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
)

// Inquiry types offered by the dashboard dialog.
const (
	InquiryGeneral = "Domanda generale"
	InquiryFeature = "Richiesta funzionalità"
	InquiryBug     = "Bug report"
	InquiryOther   = "Altro"
)

var inquiryTypes = map[string]bool{
	InquiryGeneral: true,
	InquiryFeature: true,
	InquiryBug:     true,
	InquiryOther:   true,
}

type Ticket struct {
	ID                 int64      `json:"id" gorm:"primaryKey;column:id"`
	UserName           string     `json:"user_name" gorm:"column:user_name;not null"`
	InquiryType        string     `json:"inquiry_type" gorm:"column:inquiry_type;not null"`
	ProblemTitle       string     `json:"problem_title" gorm:"column:problem_title;not null"`
	ProblemDescription string     `json:"problem_description" gorm:"column:problem_description;not null"`
	ScreenshotURL      *string    `json:"screenshot_url" gorm:"column:screenshot_url"`
	ScreenshotFilename *string    `json:"screenshot_filename" gorm:"column:screenshot_filename"`
	CreatedAt          time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"column:updated_at"`
	ResolvedAt         *time.Time `json:"resolved_at" gorm:"column:resolved_at"`
}

func (Ticket) TableName() string {
	return "formulari_tickets"
}

type CreateTicketRequest struct {
	UserName           string `json:"user_name"`
	InquiryType        string `json:"inquiry_type"`
	ProblemTitle       string `json:"problem_title"`
	ProblemDescription string `json:"problem_description"`
	ScreenshotURL      string `json:"screenshot_url,omitempty"`
	ScreenshotFilename string `json:"screenshot_filename,omitempty"`
}

// Validate trims the request in place and checks the required fields.
func (r *CreateTicketRequest) Validate() error {
	r.UserName = strings.TrimSpace(r.UserName)
	r.InquiryType = strings.TrimSpace(r.InquiryType)
	r.ProblemTitle = strings.TrimSpace(r.ProblemTitle)
	r.ProblemDescription = strings.TrimSpace(r.ProblemDescription)
	r.ScreenshotURL = strings.TrimSpace(r.ScreenshotURL)
	r.ScreenshotFilename = strings.TrimSpace(r.ScreenshotFilename)

	switch {
	case r.UserName == "":
		return apperr.Validation("user_name is required")
	case r.InquiryType == "":
		return apperr.Validation("inquiry_type is required")
	case !inquiryTypes[r.InquiryType]:
		return apperr.Validation("unknown inquiry_type %q", r.InquiryType)
	case r.ProblemTitle == "":
		return apperr.Validation("problem_title is required")
	case r.ProblemDescription == "":
		return apperr.Validation("problem_description is required")
	}
	return nil
}

func (r CreateTicketRequest) toTicket() *Ticket {
	return &Ticket{
		UserName:           r.UserName,
		InquiryType:        r.InquiryType,
		ProblemTitle:       r.ProblemTitle,
		ProblemDescription: r.ProblemDescription,
		ScreenshotURL:      optional(r.ScreenshotURL),
		ScreenshotFilename: optional(r.ScreenshotFilename),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
