package gml

import (
	"encoding/xml"
	"io"
	"os"
)

// featureMember is the wrapper element holding exactly one feature.
const featureMember = "featureMember"

// CountFeatures streams r and counts featureMember elements. Used only for
// progress reporting, never as a correctness gate.
func CountFeatures(r io.Reader) (int, error) {
	dec := xml.NewDecoder(r)
	count := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return count, nil
			}
			return count, err
		}
		if end, ok := tok.(xml.EndElement); ok && end.Name.Local == featureMember {
			count++
		}
	}
}

// CountFeaturesFile is CountFeatures over a file on disk.
func CountFeaturesFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return CountFeatures(f)
}

// FeatureReader is a pull cursor over the features of a GML file. Only one
// featureMember subtree is alive at a time, so memory stays bounded
// regardless of file size.
type FeatureReader struct {
	dec    *xml.Decoder
	closer io.Closer
}

// NewFeatureReader reads features from r.
func NewFeatureReader(r io.Reader) *FeatureReader {
	return &FeatureReader{dec: xml.NewDecoder(r)}
}

// OpenFeatureReader reads features from a file on disk. Close releases it.
func OpenFeatureReader(path string) (*FeatureReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fr := NewFeatureReader(f)
	fr.closer = f
	return fr, nil
}

// Next returns the next feature in document order: the single child of the
// next featureMember wrapper. Wrappers with no children are valid and
// skipped silently. Returns io.EOF when the stream is exhausted.
func (fr *FeatureReader) Next() (*Element, error) {
	for {
		tok, err := fr.dec.Token()
		if err != nil {
			return nil, err // io.EOF at end of stream
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != featureMember {
			continue
		}
		member, err := buildElement(fr.dec, start)
		if err != nil {
			return nil, err
		}
		if len(member.Children) == 0 {
			continue
		}
		// The file-format contract is one feature per member.
		return member.Children[0], nil
	}
}

// Close releases the underlying file, if any.
func (fr *FeatureReader) Close() error {
	if fr.closer != nil {
		return fr.closer.Close()
	}
	return nil
}
