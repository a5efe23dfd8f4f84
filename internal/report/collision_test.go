package report

import "testing"

func TestCollisionResolver_NoCollision(t *testing.T) {
	cr := newCollisionResolver()
	got := cr.resolve("/in/a.xml", "/out/en/a.txt")
	if got != "/out/en/a.txt" {
		t.Errorf("got %q", got)
	}
}

func TestCollisionResolver_SameInputIsStable(t *testing.T) {
	cr := newCollisionResolver()
	first := cr.resolve("/in/a.xml", "/out/en/a.txt")
	second := cr.resolve("/in/a.xml", "/out/en/a.txt")
	if first != second {
		t.Errorf("same input resolved differently: %q vs %q", first, second)
	}
}

func TestCollisionResolver_NumbersDuplicates(t *testing.T) {
	cr := newCollisionResolver()
	cr.resolve("/in/x/doc.xml", "/out/en/doc.txt")
	second := cr.resolve("/in/y/doc.xml", "/out/en/doc.txt")
	third := cr.resolve("/in/z/doc.xml", "/out/en/doc.txt")
	if second != "/out/en/doc-2.txt" {
		t.Errorf("second: got %q", second)
	}
	if third != "/out/en/doc-3.txt" {
		t.Errorf("third: got %q", third)
	}
}

func TestCollisionResolver_DifferentCategoriesNoCollision(t *testing.T) {
	cr := newCollisionResolver()
	a := cr.resolve("/in/x/doc.xml", "/out/en/doc.txt")
	b := cr.resolve("/in/y/doc.xml", "/out/de/doc.txt")
	if a != "/out/en/doc.txt" || b != "/out/de/doc.txt" {
		t.Errorf("got %q, %q", a, b)
	}
}
