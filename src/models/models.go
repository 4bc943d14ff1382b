package models

import (
	"fmt"
	"time"
)

// Collection names shared by the schema variants.
const (
	PersonCollection  = "Person"
	CompanyCollection = "Company"
)

// Company holds the attributes every variant stores for a company.
// Domain, Email and URL are derived from Name when the company is generated.
type Company struct {
	// ID is an opaque uuid assigned at generation time, never by the store.
	ID string `bson:"_id"`

	Name      string `bson:"name"`
	Domain    string `bson:"domain"`
	Email     string `bson:"email"`
	URL       string `bson:"url"`
	VATNumber string `bson:"vatNumber"`
}

// Person holds the attributes every variant stores for a person.
//
// Age and CompanyEmail are snapshots taken at generation time. Changing
// DateOfBirth or the company domain later does not update them.
type Person struct {
	ID string `bson:"_id"`

	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
	FullName  string `bson:"fullName"`

	// DateOfBirth is always midnight UTC.
	DateOfBirth time.Time `bson:"dateOfBirth"`
	Age         int       `bson:"age"`

	// Sex is one of M, F, O.
	Sex string `bson:"sex"`

	Email        string `bson:"email"`
	CompanyEmail string `bson:"companyEmail"`

	Address    string `bson:"address"`
	NationalID string `bson:"nationalId"`
}

// ReferencedCompany is a Company document in the referenced layout. EmployeeIDs
// is a denormalized back-reference list filled in after all people exist.
type ReferencedCompany struct {
	Company     `bson:",inline"`
	EmployeeIDs []string `bson:"employeeIds"`
}

// ReferencedPerson is a Person document in the referenced layout.
type ReferencedPerson struct {
	Person    `bson:",inline"`
	CompanyID string `bson:"companyId"`
}

// PersonWithCompany is a Person document carrying a copy of its company.
// Renaming the embedded copy touches only this document.
type PersonWithCompany struct {
	Person  `bson:",inline"`
	Company Company `bson:"company"`
}

// CompanyWithEmployees is a Company document owning its people. An embedded
// Person has no identity outside this document.
type CompanyWithEmployees struct {
	Company   `bson:",inline"`
	Employees []Person `bson:"employees"`
}

// PersonCompanyRow is one result row of the person/company join query.
type PersonCompanyRow struct {
	FullName    string `bson:"fullName"`
	CompanyName string `bson:"companyName"`
}

func (r PersonCompanyRow) String() string {
	return fmt.Sprintf("%s works at %s", r.FullName, r.CompanyName)
}

// CompanyEmployeeCount is one result row of the employees-per-company query.
type CompanyEmployeeCount struct {
	CompanyID     string `bson:"_id"`
	CompanyName   string `bson:"companyName"`
	EmployeeCount int    `bson:"numEmployees"`
}

func (r CompanyEmployeeCount) String() string {
	return fmt.Sprintf("%s has %d employees", r.CompanyName, r.EmployeeCount)
}

// UpdateResult reports how many documents an update matched and how many it
// actually changed. A matched document whose values already equal the update
// is not counted as modified.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

func (r UpdateResult) String() string {
	return fmt.Sprintf("matched %d, modified %d", r.Matched, r.Modified)
}
