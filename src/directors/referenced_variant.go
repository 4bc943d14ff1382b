package directors

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"schemabench/src/engine"
	"schemabench/src/fakedata"
	"schemabench/src/models"
	"schemabench/src/settings"
)

// ReferencedVariant keeps people and companies in separate collections.
// A person points at its company through companyId and each company lists
// its employees in employeeIds.
type ReferencedVariant struct {
	store     engine.DocumentStore
	generator *generator
	logger    *zap.SugaredLogger
}

func NewReferencedVariant(store engine.DocumentStore, provider fakedata.Provider,
	args *settings.Arguments, logger *zap.SugaredLogger) *ReferencedVariant {
	return &ReferencedVariant{
		store:     store,
		generator: newGenerator(provider, args, logger),
		logger:    logger,
	}
}

func (v *ReferencedVariant) Name() string {
	return "Model 1 (referenced)"
}

func (v *ReferencedVariant) Collections() []string {
	return []string{models.PersonCollection, models.CompanyCollection}
}

// Generate inserts every company with an empty employeeIds list, then every
// person, and finally writes each company's employeeIds in a second pass.
func (v *ReferencedVariant) Generate(ctx context.Context, n int) (GenerationSummary, error) {
	summary, err := v.generator.plan(n)
	if err != nil {
		return summary, err
	}
	if err := resetCollections(ctx, v.store, v.Collections()); err != nil {
		return summary, err
	}

	pool := newCompanyPool(summary.Companies)
	employees := make(map[string][]string, summary.Companies)
	for i := 0; i < summary.Companies; i++ {
		company := v.generator.newCompany()
		doc := models.ReferencedCompany{Company: company, EmployeeIDs: []string{}}
		if err := v.store.InsertOne(ctx, models.CompanyCollection, doc); err != nil {
			return summary, err
		}
		pool.add(company)
		employees[company.ID] = []string{}
	}
	v.logger.Infof("Generated %d companies", summary.Companies)

	for i := 0; i < summary.People; i++ {
		company := pool.pick(v.generator.provider)
		person := v.generator.newPerson(company)
		doc := models.ReferencedPerson{Person: person, CompanyID: company.ID}
		if err := v.store.InsertOne(ctx, models.PersonCollection, doc); err != nil {
			return summary, err
		}
		employees[company.ID] = append(employees[company.ID], person.ID)
	}
	v.logger.Infof("Generated %d people", summary.People)

	for _, companyID := range pool.ids {
		filter := bson.D{{Key: "_id", Value: companyID}}
		if _, err := v.store.UpdateOne(ctx, models.CompanyCollection, filter, setField("employeeIds", employees[companyID])); err != nil {
			return summary, err
		}
	}
	v.logger.Infof("Updated employee references of %d companies", len(pool.ids))

	return summary, nil
}

// PersonCompanyPairs joins each person to its company. People whose company
// does not exist are left out of the result.
func (v *ReferencedVariant) PersonCompanyPairs(ctx context.Context) ([]models.PersonCompanyRow, error) {
	pipeline := []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CompanyCollection},
			{Key: "localField", Value: "companyId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "company"},
		}}},
		{{Key: "$unwind", Value: "$company"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "fullName", Value: "$fullName"},
			{Key: "companyName", Value: "$company.name"},
		}}},
	}
	return aggregateRows[models.PersonCompanyRow](ctx, v.store, models.PersonCollection, pipeline)
}

// EmployeeCounts reports the length of each company's employeeIds list,
// whether or not the listed people still exist.
func (v *ReferencedVariant) EmployeeCounts(ctx context.Context) ([]models.CompanyEmployeeCount, error) {
	pipeline := []bson.D{
		{{Key: "$project", Value: bson.D{
			{Key: "companyName", Value: "$name"},
			{Key: "numEmployees", Value: bson.D{{Key: "$size", Value: "$employeeIds"}}},
		}}},
	}
	return aggregateRows[models.CompanyEmployeeCount](ctx, v.store, models.CompanyCollection, pipeline)
}

func (v *ReferencedVariant) ResetAgesBornBefore1988(ctx context.Context) (models.UpdateResult, error) {
	return v.store.UpdateMany(ctx, models.PersonCollection, bornBefore1988Expr(), setField("age", ResetAge))
}

func (v *ReferencedVariant) RenameAllCompanies(ctx context.Context) (models.UpdateResult, error) {
	return v.store.UpdateMany(ctx, models.CompanyCollection, bson.D{}, setField("name", RenamedCompany))
}
