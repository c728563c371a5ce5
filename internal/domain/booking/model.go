package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/catalog"
)

// Step is the position of a draft in details -> confirmation -> success.
type Step string

const (
	StepDetails      Step = "details"
	StepConfirmation Step = "confirmation"
	StepSuccess      Step = "success"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required"`
}

// Details are the contact and appointment fields collected before
// confirmation.
type Details struct {
	PatientName         string  `json:"patientName" validate:"required"`
	Email               string  `json:"email" validate:"required"`
	Phone               string  `json:"phone" validate:"required"`
	Address             Address `json:"address"`
	AppointmentDate     string  `json:"appointmentDate" validate:"required"`
	AppointmentTime     string  `json:"appointmentTime" validate:"required"`
	HomeCollection      bool    `json:"homeCollection"`
	SpecialInstructions string  `json:"specialInstructions"`
}

// Snapshot freezes the cart as shown on the confirmation step.
type Snapshot struct {
	Groups  []cart.Group `json:"groups"`
	Quote   cart.Quote   `json:"quote"`
	TakenAt time.Time    `json:"takenAt"`
}

// Draft is the in-progress booking kept in the bookingDraft slot.
type Draft struct {
	Step      Step      `json:"step"`
	Details   Details   `json:"details"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	BookingID string    `json:"bookingId,omitempty"`
	Reference string    `json:"reference,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Assignment ties one booked test or package to a patient.
type Assignment struct {
	TestID      int          `json:"testId"`
	TestType    catalog.Kind `json:"testType"`
	TestName    string       `json:"testName"`
	PatientID   string       `json:"patientId"`
	PatientName string       `json:"patientName"`
	Price       int64        `json:"price"`
}

// Record is a confirmed booking. It is never updated after creation.
type Record struct {
	ID                  uuid.UUID     `json:"id"`
	Reference           string        `json:"reference"`
	SessionID           string        `json:"sessionId"`
	PatientName         string        `json:"patientName"`
	Email               string        `json:"email"`
	Phone               string        `json:"phone"`
	Address             Address       `json:"address"`
	SelectedTests       []int         `json:"selectedTests"`
	SelectedPackages    []int         `json:"selectedPackages"`
	PatientAssignments  []Assignment  `json:"patientAssignments"`
	AppointmentDate     string        `json:"appointmentDate"`
	AppointmentTime     string        `json:"appointmentTime"`
	TotalAmount         int64         `json:"totalAmount"`
	Savings             int64         `json:"savings"`
	Discount            int64         `json:"discount"`
	PromoCode           string        `json:"promoCode,omitempty"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"paymentStatus"`
	HomeCollection      bool          `json:"homeCollection"`
	SpecialInstructions string        `json:"specialInstructions"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// Summary counts a session's bookings by status.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}

// newRecord builds a pending record from confirmed details and the cart as
// it stood at confirmation.
func newRecord(sessionID string, d Details, c cart.Contents, now time.Time) *Record {
	r := &Record{
		SessionID:           sessionID,
		PatientName:         d.PatientName,
		Email:               d.Email,
		Phone:               d.Phone,
		Address:             d.Address,
		SelectedTests:       []int{},
		SelectedPackages:    []int{},
		AppointmentDate:     d.AppointmentDate,
		AppointmentTime:     d.AppointmentTime,
		TotalAmount:         c.Quote.Total,
		Savings:             c.Quote.Savings,
		Discount:            c.Quote.Discount,
		PromoCode:           c.Quote.PromoCode,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		HomeCollection:      d.HomeCollection,
		SpecialInstructions: d.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	seenTest := map[int]bool{}
	seenPkg := map[int]bool{}
	for _, e := range c.Cart.Entries {
		switch e.Type {
		case catalog.KindTest:
			if !seenTest[e.ID] {
				seenTest[e.ID] = true
				r.SelectedTests = append(r.SelectedTests, e.ID)
			}
		case catalog.KindPackage:
			if !seenPkg[e.ID] {
				seenPkg[e.ID] = true
				r.SelectedPackages = append(r.SelectedPackages, e.ID)
			}
		}
		r.PatientAssignments = append(r.PatientAssignments, Assignment{
			TestID:      e.ID,
			TestType:    e.Type,
			TestName:    e.Name,
			PatientID:   e.PatientID,
			PatientName: e.PatientName,
			Price:       e.Price,
		})
	}
	return r
}
