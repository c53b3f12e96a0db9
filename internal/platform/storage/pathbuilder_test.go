package storage

import "testing"

func TestBuildDishImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeDishImage, PathParams{
		DishID:   "dish123",
		UploadID: "upload789",
		FileName: "hero.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "menu/dishes/dish123/images/upload789/hero.jpg"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildCategoryImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeCategoryImage, PathParams{
		CategoryID: "category42",
		FileName:   "banner.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "menu/categories/category42/banner.png"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeDishImage, PathParams{
		DishID:   "../bad",
		UploadID: "upload",
		FileName: "file.png",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}

func TestBuildObjectPathRejectsUnknownPurpose(t *testing.T) {
	_, err := BuildObjectPath(AssetPurpose("receipt"), PathParams{FileName: "file.pdf"})
	if err == nil {
		t.Fatalf("expected error for unknown purpose")
	}
}
