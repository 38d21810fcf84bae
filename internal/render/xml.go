package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"unicode"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/trace"
)

// XMLRenderer renders a trace in the MSBuild diagnostic logger layout: an
// MSBuild root holding Build, Project, Target and Task elements.
type XMLRenderer struct{}

const xmlTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (r *XMLRenderer) Render(t *trace.Trace) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	w.enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "MSBuild"}}
	root.Attr = append(root.Attr, attr("Id", t.ID))
	if !t.Started.IsZero() {
		root.Attr = append(root.Attr, attr("Started", t.Started.Format(xmlTimeLayout)))
	}
	w.start(root)
	if t.Root != nil {
		for _, c := range t.Root.Children {
			w.node(c)
		}
	}
	w.end(root)

	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return nil, fmt.Errorf("render xml: %w", w.err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// xmlWriter keeps the first encoding error so the tree walk stays linear.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(tok xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(tok)
	}
}

func (w *xmlWriter) start(se xml.StartElement) { w.token(se) }
func (w *xmlWriter) end(se xml.StartElement)   { w.token(se.End()) }

func (w *xmlWriter) text(s string) {
	if s != "" {
		w.token(xml.CharData(s))
	}
}

// leaf writes <name attrs>text</name>.
func (w *xmlWriter) leaf(name string, text string, attrs ...xml.Attr) {
	se := element(name, attrs...)
	w.start(se)
	w.text(text)
	w.end(se)
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func element(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func (w *xmlWriter) node(n *trace.Node) {
	switch n.Kind {
	case trace.KindParameters:
		se := element("LoggerParameters")
		w.start(se)
		for _, p := range n.Entries {
			w.leaf("Parameter", p.Name+"="+p.Value)
		}
		w.end(se)

	case trace.KindProperties:
		se := element("Properties")
		w.start(se)
		for _, p := range n.Entries {
			if validName(p.Name) {
				w.leaf(p.Name, p.Value)
			} else {
				w.leaf("Property", p.Value, attr("Name", p.Name))
			}
		}
		w.end(se)

	case trace.KindTargetsExecuted:
		se := element("targets-executed")
		w.start(se)
		for _, name := range n.Values {
			if validName(name) {
				w.leaf(name, "")
			} else {
				w.leaf("Target", "", attr("Name", name))
			}
		}
		w.end(se)

	case trace.KindChanges:
		w.changes(n.Changes)

	default:
		se := element(string(n.Kind), nodeAttrs(n)...)
		w.start(se)
		w.text(n.Text)
		for _, c := range n.Children {
			w.node(c)
		}
		w.end(se)
	}
}

func nodeAttrs(n *trace.Node) []xml.Attr {
	var out []xml.Attr
	if !n.Started.IsZero() {
		out = append(out, attr("Started", n.Started.Format(xmlTimeLayout)))
	}
	for _, a := range n.Attrs {
		out = append(out, attr(a.Name, a.Value))
	}
	if !n.Finished.IsZero() {
		out = append(out, attr("Finished", n.Finished.Format(xmlTimeLayout)))
	}
	if n.Succeeded != nil {
		out = append(out, attr("Succeeded", strconv.FormatBool(*n.Succeeded)))
	}
	return out
}

func (w *xmlWriter) changes(res *snapshot.CompareResult) {
	if res == nil || res.AreEqual {
		return
	}
	se := element("changes")
	w.start(se)

	if p := res.Properties; !p.Empty() {
		pe := element("all-property-changes")
		w.start(pe)
		if len(p.Changed) > 0 {
			w.group("modified-properties", func() {
				for _, c := range p.Changed {
					w.leaf("Property", "", attr("Name", c.Name), attr("PreviousValue", c.Left), attr("Value", c.Right))
				}
			})
		}
		if len(p.AddedRight) > 0 {
			w.group("new-properties", func() {
				for _, a := range p.AddedRight {
					w.leaf("Property", "", attr("Name", a.Name), attr("PreviousValue", ""), attr("Value", a.Value))
				}
			})
		}
		if len(p.RemovedLeft) > 0 {
			w.group("removed-properties", func() {
				for _, r := range p.RemovedLeft {
					w.leaf("Property", "", attr("Name", r.Name), attr("PreviousValue", r.Value), attr("Value", ""))
				}
			})
		}
		w.end(pe)
	}

	if it := res.Items; !it.Empty() {
		ie := element("all-item-changes")
		w.start(ie)
		if len(it.Changed) > 0 {
			w.group("modified-items", func() {
				for _, c := range it.Changed {
					ce := element("item-change", attr("Key", c.Left.Key()))
					w.start(ce)
					w.group("previous", func() { w.item(c.Left) })
					w.group("current", func() { w.item(c.Right) })
					w.end(ce)
				}
			})
		}
		if len(it.AddedRight) > 0 {
			w.group("new-items", func() {
				for _, a := range it.AddedRight {
					w.item(a)
				}
			})
		}
		if len(it.RemovedLeft) > 0 {
			w.group("removed-items", func() {
				for _, r := range it.RemovedLeft {
					w.item(r)
				}
			})
		}
		w.end(ie)
	}

	w.end(se)
}

func (w *xmlWriter) group(name string, body func()) {
	se := element(name)
	w.start(se)
	body()
	w.end(se)
}

func (w *xmlWriter) item(it snapshot.Item) {
	w.leaf("item", "",
		attr("ItemType", it.ItemType),
		attr("EvaluatedInclude", it.EvaluatedInclude),
		attr("MetadataCount", strconv.Itoa(it.MetadataCount())),
	)
}

// validName reports whether s can be used as an unqualified XML element
// name.
func validName(s string) bool {
	if s == "" {
		return false
	}
	if len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && (s[1] == 'm' || s[1] == 'M') && (s[2] == 'l' || s[2] == 'L') {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}
