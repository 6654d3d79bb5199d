package service

import (
	"bytes"
	"fmt"
)

// SimplePDFRenderer 内置的单页证书渲染器。
// 手工拼装最小可用的 PDF 结构，避免为一张证书引入整套排版依赖；
// 需要精美版式时可换成外部渲染服务实现 CertificateRenderer。
type SimplePDFRenderer struct{}

func NewSimplePDFRenderer() *SimplePDFRenderer {
	return &SimplePDFRenderer{}
}

func (r *SimplePDFRenderer) Render(data CertificateData) ([]byte, error) {
	content := r.contentStream(data)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 842 595] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes(), nil
}

func (r *SimplePDFRenderer) contentStream(data CertificateData) string {
	lines := []struct {
		size int
		y    int
		text string
	}{
		{32, 440, "Certificate of Completion"},
		{16, 370, "This certifies that"},
		{26, 320, data.StudentName},
		{16, 270, "has successfully completed the course"},
		{22, 220, data.CourseTitle},
		{12, 140, "Certificate No: " + data.Number},
		{12, 115, "Issued on: " + data.IssuedAt.Format("2006-01-02")},
	}

	var buf bytes.Buffer
	buf.WriteString("BT\n")
	for _, l := range lines {
		fmt.Fprintf(&buf, "/F1 %d Tf\n1 0 0 1 120 %d Tm\n(%s) Tj\n", l.size, l.y, escapePDFText(l.text))
	}
	buf.WriteString("ET\n")
	return buf.String()
}

func escapePDFText(s string) string {
	var buf bytes.Buffer
	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
