package pdu

import (
	"fmt"
	"strings"

	"github.com/giesekow/go-dicomnet/association"
)

// Item types nested in A-ASSOCIATE-RQ/AC, P3.8 9.3.2 and P3.7 Annex D.
const (
	ItemTypeApplicationContext           = 0x10
	ItemTypePresentationContextRequest   = 0x20
	ItemTypePresentationContextResponse  = 0x21
	ItemTypeAbstractSyntax               = 0x30
	ItemTypeTransferSyntax               = 0x40
	ItemTypeUserInformation              = 0x50
	ItemTypeUserInformationMaximumLength = 0x51
	ItemTypeImplementationClassUID       = 0x52
	ItemTypeAsynchronousOperationsWindow = 0x53
	ItemTypeRoleSelection                = 0x54
	ItemTypeImplementationVersionName    = 0x55
	ItemTypeUserIdentityRequest          = 0x58
	ItemTypeUserIdentityResponse         = 0x59
)

// CurrentProtocolVersion is the only protocol version defined by P3.8.
const CurrentProtocolVersion uint16 = 1

func beginItem(r *RawPdu, itemType byte) {
	r.WriteUint8(itemType)
	r.WriteUint8(0)
	r.MarkLength16()
}

func endItem(r *RawPdu) {
	r.WriteLength16()
}

func writeNameItem(r *RawPdu, itemType byte, name string) {
	beginItem(r, itemType)
	r.WriteString(name)
	endItem(r)
}

// readItems walks a sequence of items, handing each one to fn as its own
// bounded cursor. Items fn does not understand are skipped by leaving their
// cursor unread.
func readItems(r *RawPdu, fn func(itemType byte, item *RawPdu) error) error {
	for r.Remaining() > 0 {
		itemType, err := r.ReadByte()
		if err != nil {
			return err
		}
		if err := r.Skip(1); err != nil {
			return err
		}
		length, err := r.ReadUint16()
		if err != nil {
			return err
		}
		item, err := r.Sub(int(length))
		if err != nil {
			return fmt.Errorf("item 0x%02x: %w", itemType, err)
		}
		if err := fn(itemType, item); err != nil {
			return fmt.Errorf("item 0x%02x: %w", itemType, err)
		}
	}
	return nil
}

// readName reads the rest of an item as a UID or name, without padding.
func readName(item *RawPdu) (string, error) {
	s, err := item.ReadString(item.Remaining())
	if err != nil {
		return "", err
	}
	return trimPadding(s), nil
}

func trimPadding(s string) string {
	return strings.Trim(s, " \x00")
}

func writeAssociateHeader(r *RawPdu, version uint16, a *association.Association) error {
	if a.CalledAETitle == "" || a.CallingAETitle == "" {
		return fmt.Errorf("CalledAETitle or CallingAETitle cannot be empty: %v", a)
	}
	r.WriteUint16(version)
	r.WriteZeros(2)
	r.WriteStringWithPadding(a.CalledAETitle, 16, ' ')
	r.WriteStringWithPadding(a.CallingAETitle, 16, ' ')
	r.WriteZeros(8 * 4)
	writeNameItem(r, ItemTypeApplicationContext, a.ApplicationContextName)
	return nil
}

func readAssociateHeader(r *RawPdu) (version uint16, calledAETitle, callingAETitle string, err error) {
	if version, err = r.ReadUint16(); err != nil {
		return
	}
	if err = r.Skip(2); err != nil {
		return
	}
	if calledAETitle, err = r.ReadString(16); err != nil {
		return
	}
	if callingAETitle, err = r.ReadString(16); err != nil {
		return
	}
	err = r.Skip(8 * 4)
	return version, trimPadding(calledAETitle), trimPadding(callingAETitle), err
}

// writeUserInformation writes the 0x50 item. The user identity sub-item is
// 0x58 in a request and 0x59 in an accept.
func writeUserInformation(r *RawPdu, a *association.Association, request bool) {
	beginItem(r, ItemTypeUserInformation)

	beginItem(r, ItemTypeUserInformationMaximumLength)
	r.WriteUint32(a.MaxPduLength)
	endItem(r)

	if a.ImplementationClassUID != "" {
		writeNameItem(r, ItemTypeImplementationClassUID, a.ImplementationClassUID)
	}
	if a.AsyncOps != nil {
		beginItem(r, ItemTypeAsynchronousOperationsWindow)
		r.WriteUint16(a.AsyncOps.MaxOperationsInvoked)
		r.WriteUint16(a.AsyncOps.MaxOperationsPerformed)
		endItem(r)
	}
	if a.ImplementationVersion != "" {
		writeNameItem(r, ItemTypeImplementationVersionName, a.ImplementationVersion)
	}
	switch {
	case request && a.UserIdentity != nil:
		ui := a.UserIdentity
		beginItem(r, ItemTypeUserIdentityRequest)
		r.WriteUint8(byte(ui.Type))
		if ui.PositiveResponseRequested {
			r.WriteUint8(1)
		} else {
			r.WriteUint8(0)
		}
		r.MarkLength16()
		r.WriteString(ui.PrimaryField)
		r.WriteLength16()
		r.MarkLength16()
		r.WriteString(ui.SecondaryField)
		r.WriteLength16()
		endItem(r)
	case !request && a.UserIdentityServerResponse != "":
		beginItem(r, ItemTypeUserIdentityResponse)
		r.MarkLength16()
		r.WriteString(a.UserIdentityServerResponse)
		r.WriteLength16()
		endItem(r)
	}

	endItem(r)
}

func readLengthPrefixedString(r *RawPdu) (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	return r.ReadString(int(n))
}

func readUserInformation(item *RawPdu, a *association.Association) error {
	return readItems(item, func(itemType byte, sub *RawPdu) error {
		var err error
		switch itemType {
		case ItemTypeUserInformationMaximumLength:
			a.MaxPduLength, err = sub.ReadUint32()
		case ItemTypeImplementationClassUID:
			a.ImplementationClassUID, err = readName(sub)
		case ItemTypeImplementationVersionName:
			a.ImplementationVersion, err = readName(sub)
		case ItemTypeAsynchronousOperationsWindow:
			ops := &association.AsyncOps{}
			if ops.MaxOperationsInvoked, err = sub.ReadUint16(); err != nil {
				return err
			}
			if ops.MaxOperationsPerformed, err = sub.ReadUint16(); err != nil {
				return err
			}
			a.AsyncOps = ops
		case ItemTypeUserIdentityRequest:
			ui := &association.UserIdentity{}
			var b byte
			if b, err = sub.ReadByte(); err != nil {
				return err
			}
			ui.Type = association.UserIdentityType(b)
			if b, err = sub.ReadByte(); err != nil {
				return err
			}
			ui.PositiveResponseRequested = b == 1
			if ui.PrimaryField, err = readLengthPrefixedString(sub); err != nil {
				return err
			}
			if ui.SecondaryField, err = readLengthPrefixedString(sub); err != nil {
				return err
			}
			a.UserIdentity = ui
		case ItemTypeUserIdentityResponse:
			a.UserIdentityServerResponse, err = readLengthPrefixedString(sub)
		}
		return err
	})
}
