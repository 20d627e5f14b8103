package receipt

import (
	"encoding/xml"
	"strconv"
)

const (
	width   = 800
	padding = 20
	rowH    = 28
)

var columns = []struct {
	title string
	width int
}{
	{"Resource", 80},
	{"Item", 90},
	{"Unit price", 80},
	{"Billing period", 150},
	{"Receivable", 80},
	{"Discount", 60},
	{"Penalty", 70},
	{"Actual", 80},
	{"Note", 70},
}

type svgDoc struct {
	XMLName    xml.Name    `xml:"svg"`
	NS         string      `xml:"xmlns,attr"`
	Width      int         `xml:"width,attr"`
	Height     int         `xml:"height,attr"`
	ViewBox    string      `xml:"viewBox,attr"`
	FontFamily string      `xml:"font-family,attr"`
	Rects      []svgRect   `xml:"rect"`
	Lines      []svgLine   `xml:"line"`
	Circles    []svgCircle `xml:"circle"`
	Texts      []svgText   `xml:"text"`
}

type svgRect struct {
	X           int    `xml:"x,attr"`
	Y           int    `xml:"y,attr"`
	Width       int    `xml:"width,attr"`
	Height      int    `xml:"height,attr"`
	Fill        string `xml:"fill,attr"`
	Stroke      string `xml:"stroke,attr,omitempty"`
	StrokeWidth int    `xml:"stroke-width,attr,omitempty"`
}

type svgLine struct {
	X1          int    `xml:"x1,attr"`
	Y1          int    `xml:"y1,attr"`
	X2          int    `xml:"x2,attr"`
	Y2          int    `xml:"y2,attr"`
	Stroke      string `xml:"stroke,attr"`
	StrokeWidth int    `xml:"stroke-width,attr"`
}

type svgCircle struct {
	CX          int    `xml:"cx,attr"`
	CY          int    `xml:"cy,attr"`
	R           int    `xml:"r,attr"`
	Fill        string `xml:"fill,attr"`
	Stroke      string `xml:"stroke,attr"`
	StrokeWidth int    `xml:"stroke-width,attr"`
}

type svgText struct {
	X      int    `xml:"x,attr"`
	Y      int    `xml:"y,attr"`
	Size   int    `xml:"font-size,attr"`
	Weight string `xml:"font-weight,attr,omitempty"`
	Anchor string `xml:"text-anchor,attr,omitempty"`
	Fill   string `xml:"fill,attr,omitempty"`
	Body   string `xml:",chardata"`
}

type canvas struct{ doc svgDoc }

func (c *canvas) text(x, y, size int, body string, style ...string) {
	t := svgText{X: x, Y: y, Size: size, Body: body}
	if len(style) > 0 {
		t.Weight = style[0]
	}
	if len(style) > 1 {
		t.Anchor = style[1]
	}
	if len(style) > 2 {
		t.Fill = style[2]
	}
	c.doc.Texts = append(c.doc.Texts, t)
}

func (c *canvas) hline(x1, x2, y, w int) {
	c.doc.Lines = append(c.doc.Lines, svgLine{X1: x1, Y1: y, X2: x2, Y2: y, Stroke: "#000000", StrokeWidth: w})
}

func (c *canvas) vline(x, y1, y2 int) {
	c.doc.Lines = append(c.doc.Lines, svgLine{X1: x, Y1: y1, X2: x, Y2: y2, Stroke: "#000000", StrokeWidth: 1})
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func number(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Render draws r as a standalone SVG document. Every value is written as
// character data, so markup in the input is escaped.
func Render(r Receipt) ([]byte, error) {
	inner := width - 2*padding
	tableTop := 130
	tableBottom := tableTop + rowH*(len(r.Items)+2)
	height := tableBottom + 110

	c := &canvas{doc: svgDoc{
		NS:         "http://www.w3.org/2000/svg",
		Width:      width,
		Height:     height,
		ViewBox:    "0 0 " + strconv.Itoa(width) + " " + strconv.Itoa(height),
		FontFamily: "Source Han Sans SC, Roboto, sans-serif",
	}}
	c.doc.Rects = append(c.doc.Rects,
		svgRect{Width: width, Height: height, Fill: "#ffffff", Stroke: "#000000", StrokeWidth: 1},
		svgRect{X: padding, Y: 24, Width: 40, Height: 40, Fill: "#4a90e2"},
	)

	// Header.
	c.text(padding+20, 50, 16, "R", "bold", "middle", "#ffffff")
	c.text(padding+52, 50, 18, r.Collector, "bold")
	c.text(width-padding-90, 44, 24, "RECEIPT", "bold", "middle", "#d32f2f")
	c.text(width-padding-90, 64, 14, "No: "+r.No, "", "middle")
	c.hline(padding, width-padding, 76, 2)

	// Basic info.
	c.text(padding, 104, 14, "Parking spot: "+r.ParkingSpot)
	c.text(padding+200, 104, 14, "Owner: "+r.Owner)
	c.text(width-padding, 104, 14, "Issued: "+r.IssueTime, "", "end")

	// Table.
	c.doc.Rects = append(c.doc.Rects,
		svgRect{X: padding, Y: tableTop, Width: inner, Height: rowH, Fill: "#f5f5f5"},
		svgRect{X: padding, Y: tableBottom - rowH, Width: inner, Height: rowH, Fill: "#f5f5f5"},
		svgRect{X: padding, Y: tableTop, Width: inner, Height: tableBottom - tableTop, Fill: "none", Stroke: "#000000", StrokeWidth: 1},
	)
	x := padding
	for i, col := range columns {
		c.text(x+col.width/2, tableTop+18, 12, col.title, "bold", "middle")
		if i > 0 {
			c.vline(x, tableTop, tableBottom-rowH)
		}
		x += col.width
	}
	for i, item := range r.Items {
		y := tableTop + rowH*(i+1)
		c.hline(padding, width-padding, y, 1)
		cells := []string{
			item.Category,
			item.Description,
			item.UnitPrice,
			item.StartTime + " - " + item.EndTime,
			money(item.Receivable),
			number(item.Discount),
			number(item.Penalty),
			money(item.ActualAmount),
			"",
		}
		x := padding
		for j, cell := range cells {
			if cell != "" {
				c.text(x+columns[j].width/2, y+18, 12, cell, "", "middle")
			}
			x += columns[j].width
		}
	}
	c.hline(padding, width-padding, tableBottom-rowH, 1)
	c.text(padding+10, tableBottom-10, 12, "Total received", "bold")
	c.text(width-padding-10, tableBottom-10, 12, money(r.TotalAmount), "bold", "end")

	// Footer.
	c.text(padding, tableBottom+30, 12, "Collector: "+r.Collector)
	c.text(padding, tableBottom+54, 12, "Collected: "+r.CollectTime)
	c.text(padding, tableBottom+78, 12, "Payment: "+r.PaymentMethod)
	c.doc.Circles = append(c.doc.Circles, svgCircle{
		CX: width - padding - 40, CY: tableBottom + 50, R: 30,
		Fill: "none", Stroke: "#d32f2f", StrokeWidth: 2,
	})
	c.text(width-padding-40, tableBottom+54, 10, "PAID", "bold", "middle", "#d32f2f")

	out, err := xml.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
