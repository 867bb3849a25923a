package mirror

import (
	"context"
	"reflect"
	"testing"

	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/store"
	memorystore "github.com/docbridge/docbridge/internal/store/memory"
)

func newBookStore(t *testing.T) *memorystore.Store {
	t.Helper()
	st := memorystore.New()

	st.DefineSchema("person", schema.Tree{
		scalarField("name", map[string]interface{}{"type": "string"}),
		scalarField("email", nil),
	})
	st.DefineSchema("book", schema.Tree{
		scalarField("title", map[string]interface{}{"type": "string"}),
		{Name: "author", Kind: schema.KindReference, Ref: "Person"},
	})

	for model, schemaName := range map[string]string{"Person": "person", "Book": "book"} {
		if err := st.DefineModel(model, schemaName); err != nil {
			t.Fatalf("Failed to define model %s: %v", model, err)
		}
	}
	return st
}

func TestRenderDocumentCopiesDeclaredPaths(t *testing.T) {
	st := newBookStore(t)
	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title":  "Dune",
		"pages":  412,
		"author": "p1",
	}}

	doc, err := RenderDocument(context.Background(), st, rec, []string{"title"}, nil)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}

	want := map[string]interface{}{"title": "Dune"}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("Rendered document = %#v, want %#v", doc, want)
	}
}

func TestRenderDocumentWholeSnapshotWithoutPaths(t *testing.T) {
	st := newBookStore(t)
	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title": "Dune",
		"pages": 412,
	}}

	doc, err := RenderDocument(context.Background(), st, rec, nil, nil)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}
	if !reflect.DeepEqual(doc, rec.Data) {
		t.Errorf("Rendered document = %#v, want full snapshot %#v", doc, rec.Data)
	}

	// The render must not alias the record's data.
	doc["title"] = "changed"
	if rec.Data["title"] != "Dune" {
		t.Error("Rendered document aliases the record data")
	}
}

func TestRenderDocumentPopulatesReference(t *testing.T) {
	st := newBookStore(t)
	ctx := context.Background()

	if _, err := st.Save(ctx, store.Record{ID: "p1", Model: "Person", Data: map[string]interface{}{
		"name":  "Frank",
		"email": "frank@example.com",
	}}); err != nil {
		t.Fatalf("Failed to save person: %v", err)
	}

	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title":  "Dune",
		"author": "p1",
	}}
	tree := PopulationTree{"author": {Model: "Person", Fields: []string{"name"}}}

	doc, err := RenderDocument(ctx, st, rec, []string{"title", "author"}, tree)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}

	author, ok := doc["author"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected author to be populated, got %#v", doc["author"])
	}
	if author["name"] != "Frank" {
		t.Errorf("Expected author.name 'Frank', got %v", author["name"])
	}
	if _, ok := author["email"]; ok {
		t.Error("Expected author.email to be excluded from the sub-plan")
	}
}

func TestRenderDocumentOmitsDanglingReference(t *testing.T) {
	st := newBookStore(t)
	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title":  "Dune",
		"author": "gone",
	}}
	tree := PopulationTree{"author": {Model: "Person", Fields: []string{"name"}}}

	doc, err := RenderDocument(context.Background(), st, rec, []string{"title", "author"}, tree)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}
	if _, ok := doc["author"]; ok {
		t.Errorf("Expected dangling reference to be omitted, got %#v", doc["author"])
	}
	if doc["title"] != "Dune" {
		t.Errorf("Expected title to survive, got %v", doc["title"])
	}
}

func TestRenderDocumentPopulatesListInOrder(t *testing.T) {
	st := newBookStore(t)
	ctx := context.Background()

	for _, p := range []struct{ id, name string }{
		{"p1", "Frank"}, {"p2", "Brian"}, {"p3", "Kevin"},
	} {
		if _, err := st.Save(ctx, store.Record{ID: p.id, Model: "Person", Data: map[string]interface{}{
			"name": p.name,
		}}); err != nil {
			t.Fatalf("Failed to save person %s: %v", p.id, err)
		}
	}

	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title": "Dune",
		// p2 before p1; "gone" must drop without disturbing the order.
		"author": []interface{}{"p2", "gone", "p1"},
	}}
	tree := PopulationTree{"author": {Model: "Person", Fields: []string{"name"}}}

	doc, err := RenderDocument(ctx, st, rec, []string{"title", "author"}, tree)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}

	authors, ok := doc["author"].([]interface{})
	if !ok {
		t.Fatalf("Expected author list, got %#v", doc["author"])
	}
	if len(authors) != 2 {
		t.Fatalf("Expected 2 populated authors, got %d", len(authors))
	}
	first := authors[0].(map[string]interface{})
	second := authors[1].(map[string]interface{})
	if first["name"] != "Brian" || second["name"] != "Frank" {
		t.Errorf("Expected reference order preserved, got %v then %v", first["name"], second["name"])
	}
}

func TestRenderDocumentManyReferenceNormalizesToList(t *testing.T) {
	st := newBookStore(t)
	ctx := context.Background()

	if _, err := st.Save(ctx, store.Record{ID: "p1", Model: "Person", Data: map[string]interface{}{
		"name": "Frank",
	}}); err != nil {
		t.Fatalf("Failed to save person: %v", err)
	}

	// A one-to-many field holding a single bare id instead of a list.
	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title":  "Dune",
		"author": "p1",
	}}
	tree := PopulationTree{"author": {Model: "Person", Many: true, Fields: []string{"name"}}}

	doc, err := RenderDocument(ctx, st, rec, []string{"title", "author"}, tree)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}

	authors, ok := doc["author"].([]interface{})
	if !ok {
		t.Fatalf("Expected a list for the one-to-many field, got %#v", doc["author"])
	}
	if len(authors) != 1 {
		t.Fatalf("Expected 1 populated author, got %d", len(authors))
	}
	if name := authors[0].(map[string]interface{})["name"]; name != "Frank" {
		t.Errorf("Expected author name 'Frank', got %v", name)
	}
}

func TestRenderDocumentNestedPopulation(t *testing.T) {
	st := memorystore.New()
	st.DefineSchema("company", schema.Tree{
		scalarField("title", map[string]interface{}{"type": "string"}),
	})
	st.DefineSchema("person", schema.Tree{
		scalarField("name", map[string]interface{}{"type": "string"}),
		{Name: "employer", Kind: schema.KindReference, Ref: "Company"},
	})
	st.DefineSchema("book", schema.Tree{
		scalarField("title", map[string]interface{}{"type": "string"}),
		{Name: "author", Kind: schema.KindReference, Ref: "Person"},
	})
	for model, schemaName := range map[string]string{"Company": "company", "Person": "person", "Book": "book"} {
		if err := st.DefineModel(model, schemaName); err != nil {
			t.Fatalf("Failed to define model %s: %v", model, err)
		}
	}

	ctx := context.Background()
	st.Save(ctx, store.Record{ID: "c1", Model: "Company", Data: map[string]interface{}{"title": "Acme"}})
	st.Save(ctx, store.Record{ID: "p1", Model: "Person", Data: map[string]interface{}{
		"name":     "Frank",
		"employer": "c1",
	}})

	rec := store.Record{ID: "b1", Model: "Book", Data: map[string]interface{}{
		"title":  "Dune",
		"author": "p1",
	}}
	tree := PopulationTree{"author": {
		Model:  "Person",
		Fields: []string{"name", "employer"},
		Paths:  PopulationTree{"employer": {Model: "Company", Fields: []string{"title"}}},
	}}

	doc, err := RenderDocument(ctx, st, rec, []string{"title", "author"}, tree)
	if err != nil {
		t.Fatalf("Failed to render document: %v", err)
	}

	author := doc["author"].(map[string]interface{})
	employer, ok := author["employer"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected nested employer to be populated, got %#v", author["employer"])
	}
	if employer["title"] != "Acme" {
		t.Errorf("Expected employer.title 'Acme', got %v", employer["title"])
	}
}
