// =============================================================================
// ASIN Tax Reconciler - Workbook Container Patcher
// =============================================================================
//
// An xlsx file is a zip container of XML parts. After the object-model write
// some cached state in those parts can still describe the old data, so the
// host application would show stale values until a manual recalculation.
// The ContainerPatcher rewrites the parts that carry such caches:
//
//   PATCH                   PARTS
//   drop calc chain         xl/calcChain.xml, its relationship, its content
//                           type override
//   full calc on load       <calcPr fullCalcOnLoad="1"> in xl/workbook.xml
//   disable refresh         refreshOnLoad="0" in xl/connections.xml and
//                           xl/queryTables/*, updateLinks="never" on
//                           <workbookPr>
//   rotate revision         documentId of <xr:revisionPtr>
//
// Every patch works on the in-memory copy. A patch that fails leaves its
// parts untouched; a container that cannot be read or rebuilt is returned
// unmodified.
//
// =============================================================================

package workbook

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// CacheInvalidator rewrites a serialized workbook so the host application
// recomputes derived state when it next opens the file.
type CacheInvalidator interface {
	// Invalidate returns the patched bytes. On error the returned bytes are
	// still a valid workbook: either partially patched or the input itself.
	Invalidate(data []byte) ([]byte, error)
}

const (
	partContentTypes = "[Content_Types].xml"
	partWorkbook     = "xl/workbook.xml"
	partWorkbookRels = "xl/_rels/workbook.xml.rels"
	partCalcChain    = "xl/calcChain.xml"
	partConnections  = "xl/connections.xml"
	dirQueryTables   = "xl/queryTables/"
)

var (
	reCalcChainRel      = regexp.MustCompile(`<Relationship\b[^>]*calcChain[^>]*/>`)
	reCalcChainOverride = regexp.MustCompile(`<Override\b[^>]*calcChain[^>]*/>`)
	reCalcPr            = regexp.MustCompile(`<calcPr\b[^>]*?/?>`)
	reWorkbookPr        = regexp.MustCompile(`<workbookPr\b[^>]*?/?>`)
	reRefreshOnLoad     = regexp.MustCompile(`refreshOnLoad="(1|true)"`)
	reRevisionPtr       = regexp.MustCompile(`<xr:revisionPtr\b[^>]*>`)
	reDocumentID        = regexp.MustCompile(`documentId="([^"]*)"`)
	reBracedGUID        = regexp.MustCompile(`\{[0-9A-Fa-f-]+\}`)
)

// =============================================================================
// CONTAINER
// =============================================================================

// part is one zip entry held in memory.
type part struct {
	header zip.FileHeader
	body   []byte
}

// container is an ordered, mutable view of a zip archive.
type container struct {
	parts []*part
}

func readContainer(data []byte) (*container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook container: %w", err)
	}

	c := &container{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", zf.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", zf.Name, err)
		}
		c.parts = append(c.parts, &part{header: zf.FileHeader, body: body})
	}
	return c, nil
}

func (c *container) get(name string) []byte {
	for _, p := range c.parts {
		if p.header.Name == name {
			return p.body
		}
	}
	return nil
}

func (c *container) set(name string, body []byte) {
	for _, p := range c.parts {
		if p.header.Name == name {
			p.body = body
			return
		}
	}
}

func (c *container) remove(name string) bool {
	for i, p := range c.parts {
		if p.header.Name == name {
			c.parts = append(c.parts[:i], c.parts[i+1:]...)
			return true
		}
	}
	return false
}

func (c *container) names(prefix string) []string {
	var out []string
	for _, p := range c.parts {
		if strings.HasPrefix(p.header.Name, prefix) && strings.HasSuffix(p.header.Name, ".xml") {
			out = append(out, p.header.Name)
		}
	}
	return out
}

func (c *container) bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range c.parts {
		hdr := zip.FileHeader{
			Name:     p.header.Name,
			Method:   p.header.Method,
			Modified: p.header.Modified,
		}
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", p.header.Name, err)
		}
		if _, err := w.Write(p.body); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", p.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish workbook container: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// PATCHER
// =============================================================================

// patch computes its replacement parts first and applies them last, so a
// failing patch never leaves the container half-modified.
type patch struct {
	name  string
	apply func(c *container) error
}

// ContainerPatcher is the zip-level CacheInvalidator.
type ContainerPatcher struct {
	// NewID returns the revision document identifier; uuid.NewString when nil.
	NewID func() string
}

// Invalidate applies every patch to a copy of data.
//
// RETURNS:
//   - The patched workbook.
//   - The joined errors of the patches that were skipped. When the
//     container itself cannot be read or rebuilt, data is returned as is.
func (p *ContainerPatcher) Invalidate(data []byte) ([]byte, error) {
	c, err := readContainer(data)
	if err != nil {
		return data, err
	}

	var errs []error
	for _, pt := range p.patches() {
		if err := pt.apply(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pt.name, err))
		}
	}

	out, err := c.bytes()
	if err != nil {
		return data, err
	}
	return out, errors.Join(errs...)
}

func (p *ContainerPatcher) patches() []patch {
	return []patch{
		{name: "drop calc chain", apply: dropCalcChain},
		{name: "full calc on load", apply: forceFullCalc},
		{name: "disable refresh", apply: disableRefresh},
		{name: "rotate revision", apply: p.rotateRevision},
	}
}

func (p *ContainerPatcher) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

// dropCalcChain removes the cached calculation order.
func dropCalcChain(c *container) error {
	if c.get(partCalcChain) == nil {
		return nil
	}
	rels := c.get(partWorkbookRels)
	types := c.get(partContentTypes)
	if rels == nil || types == nil {
		return errors.New("relationship or content type part missing")
	}

	c.set(partWorkbookRels, reCalcChainRel.ReplaceAll(rels, nil))
	c.set(partContentTypes, reCalcChainOverride.ReplaceAll(types, nil))
	c.remove(partCalcChain)
	return nil
}

// forceFullCalc sets fullCalcOnLoad on the calculation properties, adding
// the element when the workbook has none.
func forceFullCalc(c *container) error {
	wb := c.get(partWorkbook)
	if wb == nil {
		return errors.New("workbook part missing")
	}

	var out []byte
	if loc := reCalcPr.FindIndex(wb); loc != nil {
		tag := setAttr(string(wb[loc[0]:loc[1]]), "fullCalcOnLoad", "1")
		out = splice(wb, loc, tag)
	} else {
		anchor := bytes.Index(wb, []byte("<extLst"))
		if anchor < 0 {
			anchor = bytes.LastIndex(wb, []byte("</workbook>"))
		}
		if anchor < 0 {
			return errors.New("workbook element not closed")
		}
		out = splice(wb, []int{anchor, anchor}, `<calcPr fullCalcOnLoad="1"/>`)
	}

	c.set(partWorkbook, out)
	return nil
}

// disableRefresh stops data connections, query tables and external links
// from refreshing when the file is opened.
func disableRefresh(c *container) error {
	wb := c.get(partWorkbook)
	if wb == nil {
		return errors.New("workbook part missing")
	}

	updates := map[string][]byte{}
	if loc := reWorkbookPr.FindIndex(wb); loc != nil {
		tag := setAttr(string(wb[loc[0]:loc[1]]), "updateLinks", "never")
		updates[partWorkbook] = splice(wb, loc, tag)
	}
	for _, name := range append([]string{partConnections}, c.names(dirQueryTables)...) {
		if body := c.get(name); body != nil {
			updates[name] = reRefreshOnLoad.ReplaceAll(body, []byte(`refreshOnLoad="0"`))
		}
	}

	for name, body := range updates {
		c.set(name, body)
	}
	return nil
}

// rotateRevision gives the revision pointer a new document identifier.
func (p *ContainerPatcher) rotateRevision(c *container) error {
	wb := c.get(partWorkbook)
	if wb == nil {
		return errors.New("workbook part missing")
	}
	loc := reRevisionPtr.FindIndex(wb)
	if loc == nil {
		return nil
	}

	tag := string(wb[loc[0]:loc[1]])
	m := reDocumentID.FindStringSubmatchIndex(tag)
	if m == nil {
		return nil
	}

	guid := "{" + strings.ToUpper(p.newID()) + "}"
	value := tag[m[2]:m[3]]
	if reBracedGUID.MatchString(value) {
		value = reBracedGUID.ReplaceAllLiteralString(value, guid)
	} else {
		value = guid
	}
	tag = tag[:m[2]] + value + tag[m[3]:]

	c.set(partWorkbook, splice(wb, loc, tag))
	return nil
}

// =============================================================================
// XML HELPERS
// =============================================================================

// setAttr sets name="value" on a single start or empty-element tag.
func setAttr(tag, name, value string) string {
	re := regexp.MustCompile(`\s` + regexp.QuoteMeta(name) + `="[^"]*"`)
	attr := " " + name + `="` + value + `"`
	if re.MatchString(tag) {
		return re.ReplaceAllLiteralString(tag, attr)
	}
	end := len(tag) - 1
	if strings.HasSuffix(tag, "/>") {
		end = len(tag) - 2
	}
	return tag[:end] + attr + tag[end:]
}

func splice(body []byte, loc []int, replacement string) []byte {
	out := make([]byte, 0, len(body)+len(replacement))
	out = append(out, body[:loc[0]]...)
	out = append(out, replacement...)
	return append(out, body[loc[1]:]...)
}
