package dto

import "time"

// CreateMemberRequest registers a new adorer.
type CreateMemberRequest struct {
	FullName    string     `json:"full_name" validate:"required,min=2,max=160"`
	SectionID   *string    `json:"section_id" validate:"omitempty,uuid"`
	Type        string     `json:"type" validate:"omitempty,oneof=member aspirant first_time"`
	Class       string     `json:"class" validate:"omitempty,oneof=aspirant trial active honorary discharged inactive"`
	VigilOrder  *int       `json:"vigil_order" validate:"omitempty,min=1"`
	Phone       *string    `json:"phone" validate:"omitempty,max=40"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Address     *string    `json:"address" validate:"omitempty,max=255"`
	JoinDate    *time.Time `json:"join_date"`
	PresentedBy *string    `json:"presented_by" validate:"omitempty,max=160"`
	Badges      []string   `json:"badges" validate:"dive,required"`
	Notes       *string    `json:"notes"`
}

// UpdateMemberRequest changes member data. Nil fields are left untouched. A class change is recorded in the status history.
type UpdateMemberRequest struct {
	FullName     *string    `json:"full_name" validate:"omitempty,min=2,max=160"`
	SectionID    *string    `json:"section_id" validate:"omitempty,uuid"`
	Type         *string    `json:"type" validate:"omitempty,oneof=member aspirant first_time"`
	Class        *string    `json:"class" validate:"omitempty,oneof=aspirant trial active honorary discharged inactive"`
	VigilOrder   *int       `json:"vigil_order" validate:"omitempty,min=1"`
	Phone        *string    `json:"phone" validate:"omitempty,max=40"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	Address      *string    `json:"address" validate:"omitempty,max=255"`
	JoinDate     *time.Time `json:"join_date"`
	PresentedBy  *string    `json:"presented_by" validate:"omitempty,max=160"`
	Badges       []string   `json:"badges" validate:"omitempty,dive,required"`
	Notes        *string    `json:"notes"`
	Reason       string     `json:"reason" validate:"max=255"`
	AuthorizedBy string     `json:"authorized_by" validate:"max=160"`
}

// ChangeStatusRequest moves a member to another class.
type ChangeStatusRequest struct {
	Class        string `json:"class" validate:"required,oneof=aspirant trial active honorary discharged inactive"`
	Reason       string `json:"reason" validate:"max=255"`
	AuthorizedBy string `json:"authorized_by" validate:"max=160"`
}

// MemberQuery carries list filters from the query string.
type MemberQuery struct {
	SectionID string `form:"section_id" binding:"omitempty,uuid"`
	Class     string `form:"class"`
	Type      string `form:"type"`
	Search    string `form:"q"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}
