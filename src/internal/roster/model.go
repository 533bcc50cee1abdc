package roster

// Entry is one enrolled student. The roster collection is owned and
// populated outside this service; it is read-only input here.
type Entry struct {
	StudentID string `json:"studentId" bson:"student_id"`
	Name      string `json:"name" bson:"name"`
	CourseID  string `json:"courseId" bson:"course_id"`
}
