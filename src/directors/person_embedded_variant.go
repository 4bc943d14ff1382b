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

// PersonEmbeddedVariant stores only people. Each person carries a copy of
// its company taken at generation time; there is no company collection.
type PersonEmbeddedVariant struct {
	store     engine.DocumentStore
	generator *generator
	logger    *zap.SugaredLogger
}

func NewPersonEmbeddedVariant(store engine.DocumentStore, provider fakedata.Provider,
	args *settings.Arguments, logger *zap.SugaredLogger) *PersonEmbeddedVariant {
	return &PersonEmbeddedVariant{
		store:     store,
		generator: newGenerator(provider, args, logger),
		logger:    logger,
	}
}

func (v *PersonEmbeddedVariant) Name() string {
	return "Model 2 (company embedded in person)"
}

func (v *PersonEmbeddedVariant) Collections() []string {
	return []string{models.PersonCollection}
}

func (v *PersonEmbeddedVariant) Generate(ctx context.Context, n int) (GenerationSummary, error) {
	summary, err := v.generator.plan(n)
	if err != nil {
		return summary, err
	}
	if err := resetCollections(ctx, v.store, v.Collections()); err != nil {
		return summary, err
	}

	pool := newCompanyPool(summary.Companies)
	for i := 0; i < summary.Companies; i++ {
		pool.add(v.generator.newCompany())
	}
	v.logger.Infof("Generated %d companies", summary.Companies)

	for i := 0; i < summary.People; i++ {
		company := pool.pick(v.generator.provider)
		doc := models.PersonWithCompany{Person: v.generator.newPerson(company), Company: company}
		if err := v.store.InsertOne(ctx, models.PersonCollection, doc); err != nil {
			return summary, err
		}
	}
	v.logger.Infof("Generated %d people", summary.People)

	return summary, nil
}

func (v *PersonEmbeddedVariant) PersonCompanyPairs(ctx context.Context) ([]models.PersonCompanyRow, error) {
	pipeline := []bson.D{
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "fullName", Value: "$fullName"},
			{Key: "companyName", Value: "$company.name"},
		}}},
	}
	return aggregateRows[models.PersonCompanyRow](ctx, v.store, models.PersonCollection, pipeline)
}

// EmployeeCounts groups people by their embedded company id. A company no
// person was assigned to has no row.
func (v *PersonEmbeddedVariant) EmployeeCounts(ctx context.Context) ([]models.CompanyEmployeeCount, error) {
	pipeline := []bson.D{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$company._id"},
			{Key: "companyName", Value: bson.D{{Key: "$first", Value: "$company.name"}}},
			{Key: "numEmployees", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	return aggregateRows[models.CompanyEmployeeCount](ctx, v.store, models.PersonCollection, pipeline)
}

func (v *PersonEmbeddedVariant) ResetAgesBornBefore1988(ctx context.Context) (models.UpdateResult, error) {
	return v.store.UpdateMany(ctx, models.PersonCollection, bornBefore1988Expr(), setField("age", ResetAge))
}

// RenameAllCompanies rewrites the embedded copy in every person, so the
// counts are per person rather than per company.
func (v *PersonEmbeddedVariant) RenameAllCompanies(ctx context.Context) (models.UpdateResult, error) {
	return v.store.UpdateMany(ctx, models.PersonCollection, bson.D{}, setField("company.name", RenamedCompany))
}
