package xmppcore

import (
	"encoding/xml"
	"fmt"

	"github.com/pkg/errors"
)

var (
	errUnsupportedDirective = errors.New("xmppcore: DOCTYPE and other directives are not allowed in an XMPP stream")
	errExpectedStreamHeader = errors.New("xmppcore: expected a <stream:stream> header as the first element")
)

func errUnsupportedProcInst(target string) error {
	return fmt.Errorf("xmppcore: processing instruction <?%s?> is not allowed in an XMPP stream", target)
}

func errUnexpectedEnd(name xml.Name) error {
	return fmt.Errorf("xmppcore: unexpected end element </%s>", name.Local)
}
