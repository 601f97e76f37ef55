package testgrades

import "time"

// Generated file names, relative to Config.Dir.
const (
	GradesFile = "grades.csv"
	CourseFile = "course.yaml"
)

// Assignment points possible.
const (
	HomeworkPoints = 10
	QuizPoints     = 20
	ExamPoints     = 100
)

// Group weights of the generated course.
const (
	HomeworkWeight = 0.4
	QuizWeight     = 0.2
	ExamWeight     = 0.4
)

// Late policy of the generated course.
const (
	LatePenaltyPercent = 10
	ForgivenLates      = 1
	MaxLateness        = 72 * time.Hour
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)
