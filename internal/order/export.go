package order

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html/charset"
)

// Export is the album tool's XML order export as written to disk.
type Export struct {
	XMLName   xml.Name
	ClientID  string       `xml:"Client_ID"`
	AlbumName string       `xml:"Album_Name"`
	AlbumPath string       `xml:"Album_Path"`
	Email     string       `xml:"Email_Address"`
	FirstName string       `xml:"First_Name"`
	LastName  string       `xml:"Last_Name"`
	CellPhone string       `xml:"Cell_Phone"`
	HomePhone string       `xml:"Home_Phone"`
	WorkPhone string       `xml:"Work_Phone"`
	Street    string       `xml:"Street"`
	Street2   string       `xml:"Street2"`
	City      string       `xml:"City"`
	State     string       `xml:"State"`
	ZipCode   string       `xml:"Zip_Code"`
	Country   string       `xml:"Country"`
	Order     *ExportOrder `xml:"Order"`
}

// ExportOrder is the <Order> element.
type ExportOrder struct {
	DateSQL     string
	AlbumID     string
	TotalAmount string

	// Items and Payments hold every <Ordered_Item> and <Payment> below <Order>
	// at any depth, in document order.
	Items    []ExportItem
	Payments []ExportPayment
}

// UnmarshalXML reads the scalar children of <Order> and collects items and
// payments wherever they are nested, keeping document order.
func (o *ExportOrder) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var derr error
			switch {
			case t.Name.Local == "Ordered_Item":
				var it ExportItem
				derr = d.DecodeElement(&it, &t)
				o.Items = append(o.Items, it)
			case t.Name.Local == "Payment":
				var p ExportPayment
				derr = d.DecodeElement(&p, &t)
				o.Payments = append(o.Payments, p)
			case depth == 0 && t.Name.Local == "DateSQL":
				derr = d.DecodeElement(&o.DateSQL, &t)
			case depth == 0 && t.Name.Local == "Album_ID":
				derr = d.DecodeElement(&o.AlbumID, &t)
			case depth == 0 && t.Name.Local == "Total_Amount":
				derr = d.DecodeElement(&o.TotalAmount, &t)
			default:
				depth++
			}
			if derr != nil {
				return derr
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// AllItems returns every ordered item in document order.
func (o *ExportOrder) AllItems() []ExportItem {
	return append([]ExportItem(nil), o.Items...)
}

// AllPayments returns every payment in document order.
func (o *ExportOrder) AllPayments() []ExportPayment {
	return append([]ExportPayment(nil), o.Payments...)
}

// ExportItem is one <Ordered_Item>.
type ExportItem struct {
	ItemType      string     `xml:"ItemType"`
	Description   string     `xml:"Description"`
	ProductName   string     `xml:"Product_Name"`
	ProductCode   string     `xml:"Product_Code"`
	ID            string     `xml:"ID"`
	Size          string     `xml:"Size"`
	TemplateName  string     `xml:"Template_Name"`
	ExtendedPrice string     `xml:"Extended_Price"`
	Quantity      string     `xml:"Quantity"`
	Tax           *ExportTax `xml:"Tax"`
	Tax1          *TaxDetail `xml:"Tax1"`
}

// ExportTax carries the taxable flag and the VAT amount of a line.
type ExportTax struct {
	Taxable string `xml:"taxable,attr"`
	Amount  string `xml:",chardata"`
}

// TaxDetail describes the tax rate applied to a line.
type TaxDetail struct {
	Label            string `xml:"label,attr"`
	Rate             string `xml:"rate,attr"`
	PriceIncludesTax string `xml:"priceIncludesTax,attr"`
}

// ExportPayment is one <Payment>.
type ExportPayment struct {
	ID         string `xml:"id,attr"`
	DateSQL    string `xml:"DateSQL"`
	Amount     string `xml:"Amount"`
	Method     string `xml:"Method"`
	MethodName string `xml:"MethodName"`
	Type       string `xml:"Type"`
}

// ReadExport opens and parses an export file.
func ReadExport(path string) (*Export, error) {
	const op = "ReadExport"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	exp, err := ParseExport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return exp, nil
}

// ParseExport decodes an export document. Non-UTF-8 encodings declared in the
// XML prolog are converted.
func ParseExport(r io.Reader) (*Export, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var exp Export
	if err := dec.Decode(&exp); err != nil {
		return nil, &IngestionError{Field: "document", Reason: "malformed XML", Err: err}
	}
	return &exp, nil
}
