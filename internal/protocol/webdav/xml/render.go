package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/props"
)

// RenderedProp is one property to render inside a propstat group.
type RenderedProp struct {
	Name props.Name

	// Value is nil for name-only rendering (propname requests and
	// non-200 propstat groups), otherwise one of the getter value types.
	Value any
}

// Propstat groups properties sharing one status inside a response.
type Propstat struct {
	Status dav.Status
	Props  []RenderedProp
}

// Response is one response element of a multistatus body: either a bare
// href+status pair (recursive operation failures) or href+propstat groups
// (property responses). Status is ignored when Propstats is non-empty.
type Response struct {
	Href      string
	Status    dav.Status
	Propstats []Propstat
}

type propContainerXML struct {
	Inner string `xml:",innerxml"`
}

type propstatXML struct {
	Prop   propContainerXML `xml:"D:prop"`
	Status string           `xml:"D:status"`
}

type responseXML struct {
	Href      string        `xml:"D:href"`
	Propstats []propstatXML `xml:"D:propstat,omitempty"`
	Status    string        `xml:"D:status,omitempty"`
}

type multistatusXML struct {
	XMLName   xml.Name      `xml:"D:multistatus"`
	XMLNS     string        `xml:"xmlns:D,attr"`
	Responses []responseXML `xml:"D:response"`
}

// WriteMultistatus renders and writes a 207 Multi-Status body.
func WriteMultistatus(w http.ResponseWriter, responses []Response) error {
	body := multistatusXML{XMLNS: dav.Namespace}
	for _, r := range responses {
		// Href is escaped by the encoder; only hand-built inner XML needs
		// manual escaping.
		resp := responseXML{Href: r.Href}
		if len(r.Propstats) == 0 {
			resp.Status = dav.StatusLine(r.Status)
		}
		for _, ps := range r.Propstats {
			var inner strings.Builder
			for _, p := range ps.Props {
				writeProp(&inner, p)
			}
			resp.Propstats = append(resp.Propstats, propstatXML{
				Prop:   propContainerXML{Inner: inner.String()},
				Status: dav.StatusLine(ps.Status),
			})
		}
		body.Responses = append(body.Responses, resp)
	}

	encoded, err := xml.Marshal(body)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(int(dav.StatusMultiStatus))
	if _, err := fmt.Fprint(w, xml.Header); err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// WriteLockDiscovery renders and writes the prop/lockdiscovery body of a
// successful LOCK response with the given status.
func WriteLockDiscovery(w http.ResponseWriter, status dav.Status, l *lock.Lock) error {
	var inner strings.Builder
	writeActiveLock(&inner, l)

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(int(status))
	_, err := fmt.Fprintf(w, "%s<D:prop xmlns:D=%q><D:lockdiscovery>%s</D:lockdiscovery></D:prop>",
		xml.Header, dav.Namespace, inner.String())
	return err
}

// writeProp renders one property element.
//
// DAV: properties use the document's D prefix; properties in other
// namespaces carry their namespace as a default-xmlns declaration on the
// element itself.
func writeProp(b *strings.Builder, p RenderedProp) {
	var open, closing string
	if p.Name.Space == dav.Namespace {
		open = "D:" + p.Name.Local
		closing = open
	} else {
		open = fmt.Sprintf("%s xmlns=%q", p.Name.Local, p.Name.Space)
		closing = p.Name.Local
	}

	if p.Value == nil {
		fmt.Fprintf(b, "<%s/>", open)
		return
	}

	fmt.Fprintf(b, "<%s>", open)
	writeValue(b, p.Value)
	fmt.Fprintf(b, "</%s>", closing)
}

// writeValue renders a property value as inner XML.
func writeValue(b *strings.Builder, value any) {
	switch v := value.(type) {
	case string:
		b.WriteString(escape(v))

	case dav.ResourceType:
		if v.Collection {
			b.WriteString("<D:collection/>")
		}

	case dav.SupportedLock:
		b.WriteString("<D:lockentry><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>")
		b.WriteString("<D:lockentry><D:lockscope><D:shared/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>")

	case []lock.Lock:
		for i := range v {
			writeActiveLock(b, &v[i])
		}

	default:
		b.WriteString(escape(fmt.Sprint(v)))
	}
}

// writeActiveLock renders one activelock element.
func writeActiveLock(b *strings.Builder, l *lock.Lock) {
	b.WriteString("<D:activelock>")
	b.WriteString("<D:locktype><D:write/></D:locktype>")
	fmt.Fprintf(b, "<D:lockscope><D:%s/></D:lockscope>", l.Scope)
	fmt.Fprintf(b, "<D:depth>%s</D:depth>", l.Depth)
	if l.Owner != "" {
		// Owner carries the raw XML submitted at grant time.
		fmt.Fprintf(b, "<D:owner>%s</D:owner>", l.Owner)
	}
	fmt.Fprintf(b, "<D:timeout>%s</D:timeout>", FormatTimeout(l.Timeout))
	fmt.Fprintf(b, "<D:locktoken><D:href>%s</D:href></D:locktoken>", escape(l.Token))
	fmt.Fprintf(b, "<D:lockroot><D:href>%s</D:href></D:lockroot>", escape(l.Path))
	b.WriteString("</D:activelock>")
}

// FormatTimeout renders a lock timeout as a TimeType header value.
func FormatTimeout(d time.Duration) string {
	return fmt.Sprintf("Second-%d", int64(d.Seconds()))
}

func escape(s string) string {
	var b bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
