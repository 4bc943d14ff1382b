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

// CompanyEmbeddedVariant stores only companies. People exist solely as
// elements of their company's employees array.
type CompanyEmbeddedVariant struct {
	store     engine.DocumentStore
	generator *generator
	logger    *zap.SugaredLogger
}

func NewCompanyEmbeddedVariant(store engine.DocumentStore, provider fakedata.Provider,
	args *settings.Arguments, logger *zap.SugaredLogger) *CompanyEmbeddedVariant {
	return &CompanyEmbeddedVariant{
		store:     store,
		generator: newGenerator(provider, args, logger),
		logger:    logger,
	}
}

func (v *CompanyEmbeddedVariant) Name() string {
	return "Model 3 (people embedded in company)"
}

func (v *CompanyEmbeddedVariant) Collections() []string {
	return []string{models.CompanyCollection}
}

// Generate inserts every company with an empty employees array and then
// pushes each person into the array of a randomly chosen company.
func (v *CompanyEmbeddedVariant) Generate(ctx context.Context, n int) (GenerationSummary, error) {
	summary, err := v.generator.plan(n)
	if err != nil {
		return summary, err
	}
	if err := resetCollections(ctx, v.store, v.Collections()); err != nil {
		return summary, err
	}

	pool := newCompanyPool(summary.Companies)
	for i := 0; i < summary.Companies; i++ {
		company := v.generator.newCompany()
		doc := models.CompanyWithEmployees{Company: company, Employees: []models.Person{}}
		if err := v.store.InsertOne(ctx, models.CompanyCollection, doc); err != nil {
			return summary, err
		}
		pool.add(company)
	}
	v.logger.Infof("Generated %d companies", summary.Companies)

	for i := 0; i < summary.People; i++ {
		company := pool.pick(v.generator.provider)
		person := v.generator.newPerson(company)
		filter := bson.D{{Key: "_id", Value: company.ID}}
		update := bson.D{{Key: "$push", Value: bson.D{{Key: "employees", Value: person}}}}
		if _, err := v.store.UpdateOne(ctx, models.CompanyCollection, filter, update); err != nil {
			return summary, err
		}
	}
	v.logger.Infof("Generated %d people", summary.People)

	return summary, nil
}

// PersonCompanyPairs emits one row per embedded employee. Companies with an
// empty employees array contribute nothing.
func (v *CompanyEmbeddedVariant) PersonCompanyPairs(ctx context.Context) ([]models.PersonCompanyRow, error) {
	pipeline := []bson.D{
		{{Key: "$unwind", Value: "$employees"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "fullName", Value: "$employees.fullName"},
			{Key: "companyName", Value: "$name"},
		}}},
	}
	return aggregateRows[models.PersonCompanyRow](ctx, v.store, models.CompanyCollection, pipeline)
}

func (v *CompanyEmbeddedVariant) EmployeeCounts(ctx context.Context) ([]models.CompanyEmployeeCount, error) {
	pipeline := []bson.D{
		{{Key: "$project", Value: bson.D{
			{Key: "companyName", Value: "$name"},
			{Key: "numEmployees", Value: bson.D{{Key: "$size", Value: "$employees"}}},
		}}},
	}
	return aggregateRows[models.CompanyEmployeeCount](ctx, v.store, models.CompanyCollection, pipeline)
}

// ResetAgesBornBefore1988 matches companies with at least one employee born
// before the cutoff and rewrites only those employees. Counts are per company.
func (v *CompanyEmbeddedVariant) ResetAgesBornBefore1988(ctx context.Context) (models.UpdateResult, error) {
	cutoff := ageCutoffDate()
	filter := bson.D{{Key: "employees", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "dateOfBirth", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	}}}}}
	arrayFilter := bson.D{{Key: "elem.dateOfBirth", Value: bson.D{{Key: "$lt", Value: cutoff}}}}

	return v.store.UpdateMany(ctx, models.CompanyCollection, filter, setField("employees.$[elem].age", ResetAge), arrayFilter)
}

func (v *CompanyEmbeddedVariant) RenameAllCompanies(ctx context.Context) (models.UpdateResult, error) {
	return v.store.UpdateMany(ctx, models.CompanyCollection, bson.D{}, setField("name", RenamedCompany))
}
