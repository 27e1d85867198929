package models

// NotificationType identifies message payload shapes on the notification queue.
type NotificationType string

const NotificationSubstitutionAssigned NotificationType = "substitution_assigned"

// NotificationMessage is the JSON body published to the notification queue.
type NotificationMessage struct {
	Type NotificationType `json:"type"`
	To   string           `json:"to"`
	Data any              `json:"data"`
}

// SubstitutionNotice tells a substitute which period they cover.
type SubstitutionNotice struct {
	RunID             string `json:"run_id"`
	SubstituteName    string `json:"substitute_name"`
	AbsentTeacherName string `json:"absent_teacher_name"`
	ClassName         string `json:"class_name"`
	Day               string `json:"day"`
	Period            string `json:"period"`
}
