package domain

// Department is the functional team responsible for a complaint category.
type Department string

const (
	DepartmentStructural Department = "Structural"
	DepartmentPlumbing   Department = "Plumbing"
	DepartmentSanitation Department = "Sanitation"
	DepartmentElectrical Department = "Electrical"
	DepartmentUnassigned Department = "Unassigned"
)

// Departments lists every routable department.
var Departments = []Department{
	DepartmentStructural,
	DepartmentPlumbing,
	DepartmentSanitation,
	DepartmentElectrical,
}

// Valid reports whether d is a persisted department value, including Unassigned.
func (d Department) Valid() bool {
	switch d {
	case DepartmentStructural, DepartmentPlumbing, DepartmentSanitation, DepartmentElectrical, DepartmentUnassigned:
		return true
	}
	return false
}

// IsMissing reports whether the department still needs routing.
func (d Department) IsMissing() bool {
	return d == ""
}
