package model

// AssetKind categorizes a resource referenced from a captured page.
// The kind selects the Wayback rendering modifier used to fetch it.
type AssetKind int

const (
	// KindOther is any resource with no dedicated modifier (embeds, objects, fonts).
	KindOther AssetKind = iota

	// KindPage is an HTML document fetched in its raw, unmodified form.
	KindPage

	// KindImage is an image (img, background, srcset, favicon, input type=image).
	KindImage

	// KindStylesheet is a CSS file referenced with link rel=stylesheet.
	KindStylesheet

	// KindScript is a JavaScript file referenced with script src.
	KindScript
)

// String returns a short lowercase name for the kind.
func (k AssetKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindImage:
		return "image"
	case KindStylesheet:
		return "css"
	case KindScript:
		return "js"
	default:
		return "other"
	}
}

// Modifier returns the Wayback Machine URL modifier for the kind.
//
//   - id_ returns the original bytes without the Wayback toolbar or rewriting
//   - im_ returns an image
//   - cs_ returns a stylesheet
//   - js_ returns a script
//
// Other kinds use no modifier.
func (k AssetKind) Modifier() string {
	switch k {
	case KindPage:
		return "id_"
	case KindImage:
		return "im_"
	case KindStylesheet:
		return "cs_"
	case KindScript:
		return "js_"
	default:
		return ""
	}
}
