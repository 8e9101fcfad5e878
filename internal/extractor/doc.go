// Package extractor finds the links and asset references in a captured page.
//
// Links are the internal pages a crawl should visit next: anchors, image map
// areas and frames whose host is the crawled domain or its www. variant.
// Assets are everything a page needs to render: images, stylesheets,
// scripts, favicons, CSS url() references, legacy background attributes,
// embeds and objects. Both internal and external assets are returned, tagged
// so the asset store can file them separately.
//
// References are resolved against the page URL with standard relative-URL
// resolution. Links the archive rewrote into its own replay form are mapped
// back to the original URL first.
package extractor
