package grade

// Permission predicates. Pure functions with no side effects; the Service
// consults these before any persistence call.

// CanVerify reports whether actor may verify or reject the grade:
// any admin, or the teacher who authored it.
func CanVerify(actor Actor, g Grade) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsTeacher() && actor.ID == g.TeacherID
}

// CanEdit shares the authorization rule with CanVerify.
func CanEdit(actor Actor, g Grade) bool {
	return CanVerify(actor, g)
}

// CanDelete reports whether actor may delete the grade.
func CanDelete(actor Actor, g Grade) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsTeacher() && actor.ID == g.TeacherID
}

// CanRead reports whether actor may see the grade at all: admins see
// everything, teachers see grades they authored, students only their own.
func CanRead(actor Actor, g Grade) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsTeacher() && actor.ID == g.TeacherID {
		return true
	}
	return actor.IsStudent() && actor.ID == g.StudentID
}
