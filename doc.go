// Package zim reads and writes ZIM archives: single-file, offline content
// containers that bundle articles, images and metadata behind a directory
// of (namespace, url) entries.
//
// An archive consists of a fixed header, a mimetype table, a directory of
// entries, pointer tables, and clusters holding the entry content. Each
// cluster is stored raw or as one zlib stream.
//
// # Reading
//
//	r, err := zim.Open("wiki.zim")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	page, err := r.MainPage()
//	if err != nil {
//	    return err
//	}
//	html, err := r.Content(page)
//
// Redirects are followed with [Reader.Resolve] or transparently by
// [Reader.ContentByPath]. A Reader is safe for concurrent use.
//
// [Reader.FS] exposes a namespace as an [io/fs.FS], so archives plug into
// http.FileServerFS, fs.WalkDir and template loaders.
//
// # Writing
//
//	w, err := zim.Create("out.zim", zim.WithCompression(zim.CompressionZlib))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	idx, err := w.AddArticle(zim.NamespaceArticle, "index.html", "Home", html, "text/html")
//	if err != nil {
//	    return err
//	}
//	if _, err := w.AddRedirect(zim.NamespaceArticle, "home", "Home", idx); err != nil {
//	    return err
//	}
//	if err := w.SetMainPage(idx); err != nil {
//	    return err
//	}
//	return w.Finalize()
//
// A Writer is not safe for concurrent use.
package zim
