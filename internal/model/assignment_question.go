package model

// AssignmentQuestion links a question into an assignment. Any link blocks
// deletion of the question.
type AssignmentQuestion struct {
	UUIDBase
	AssignmentID  string `gorm:"type:varchar(36);index;not null" json:"assignmentId"`
	QuestionID    string `gorm:"type:varchar(36);index;not null" json:"questionId"`
	QuestionOrder int    `gorm:"default:0" json:"questionOrder"`
}

func (AssignmentQuestion) TableName() string {
	return "assignment_questions"
}
