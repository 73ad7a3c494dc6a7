package kvstore

import (
	"fmt"
	"time"

	"kurudhi-koodai/dbtypes"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Stored values are protobuf messages from this file:
//
//	syntax = "proto3";
//	package kurudhi.kvstore;
//	import "google/protobuf/timestamp.proto";
//
//	message Request {
//	  string id = 1;
//	  string requester_id = 2;
//	  string patient_name = 3;
//	  int64 patient_age = 4;
//	  string patient_gender = 5;
//	  string hospital = 6;
//	  string reason = 7;
//	  string blood_group = 8;
//	  bool any_group_accepted = 9;
//	  int64 units_needed = 10;
//	  int64 units_donated = 11;
//	  string status = 12;
//	  google.protobuf.Timestamp created_at = 13;
//	  google.protobuf.Timestamp updated_at = 14;
//	  bool completion_notified = 15;
//	}
//
//	message Donor {
//	  string id = 1;
//	  string email = 2;
//	  string name = 3;
//	  string phone = 4;
//	  string city = 5;
//	  string blood_group = 6;
//	  google.protobuf.Timestamp last_donation_date = 7;
//	  google.protobuf.Timestamp created_at = 8;
//	}
//
//	message Donation {
//	  string id = 1;
//	  string request_id = 2;
//	  string donor_id = 3;
//	  string donor_otp = 4;
//	  string requester_otp = 5;
//	  bool donor_side_verified = 6;
//	  bool requester_side_verified = 7;
//	  google.protobuf.Timestamp created_at = 8;
//	  google.protobuf.Timestamp completed_at = 9;
//	  google.protobuf.Timestamp cancelled_at = 10;
//	  string cancel_reason = 11;
//	}
//
//	message User {
//	  string id = 1;
//	  string email = 2;
//	  string display_name = 3;
//	  string password_hash = 4;
//	  repeated string roles = 5;
//	}
//
//	message Session {
//	  string cookie = 1;
//	  string user_id = 2;
//	  google.protobuf.Timestamp expires = 3;
//	}
//
//	message EmailClaim {
//	  string owner_id = 1;
//	}
//
// The descriptor is assembled below rather than generated, and messages are
// handled through dynamicpb.
var recordsFile = mustBuildRecordsFile()

type fieldSpec struct {
	name     string
	number   int32
	kind     descriptorpb.FieldDescriptorProto_Type
	repeated bool
}

func str(name string, number int32) fieldSpec {
	return fieldSpec{name: name, number: number, kind: descriptorpb.FieldDescriptorProto_TYPE_STRING}
}

func i64(name string, number int32) fieldSpec {
	return fieldSpec{name: name, number: number, kind: descriptorpb.FieldDescriptorProto_TYPE_INT64}
}

func boolean(name string, number int32) fieldSpec {
	return fieldSpec{name: name, number: number, kind: descriptorpb.FieldDescriptorProto_TYPE_BOOL}
}

func timestamp(name string, number int32) fieldSpec {
	return fieldSpec{name: name, number: number, kind: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE}
}

func message(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	m := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for _, f := range fields {
		label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
		if f.repeated {
			label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
		}
		fd := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(f.number),
			Label:  label.Enum(),
			Type:   f.kind.Enum(),
		}
		if f.kind == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE {
			fd.TypeName = proto.String(".google.protobuf.Timestamp")
		}
		m.Field = append(m.Field, fd)
	}
	return m
}

func mustBuildRecordsFile() protoreflect.FileDescriptor {
	roles := str("roles", 5)
	roles.repeated = true

	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("kurudhi/kvstore/records.proto"),
		Package:    proto.String("kurudhi.kvstore"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{timestamppb.File_google_protobuf_timestamp_proto.Path()},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Request",
				str("id", 1), str("requester_id", 2), str("patient_name", 3), i64("patient_age", 4),
				str("patient_gender", 5), str("hospital", 6), str("reason", 7), str("blood_group", 8),
				boolean("any_group_accepted", 9), i64("units_needed", 10), i64("units_donated", 11),
				str("status", 12), timestamp("created_at", 13), timestamp("updated_at", 14),
				boolean("completion_notified", 15)),
			message("Donor",
				str("id", 1), str("email", 2), str("name", 3), str("phone", 4), str("city", 5),
				str("blood_group", 6), timestamp("last_donation_date", 7), timestamp("created_at", 8)),
			message("Donation",
				str("id", 1), str("request_id", 2), str("donor_id", 3), str("donor_otp", 4),
				str("requester_otp", 5), boolean("donor_side_verified", 6), boolean("requester_side_verified", 7),
				timestamp("created_at", 8), timestamp("completed_at", 9), timestamp("cancelled_at", 10),
				str("cancel_reason", 11)),
			message("User",
				str("id", 1), str("email", 2), str("display_name", 3), str("password_hash", 4), roles),
			message("Session",
				str("cookie", 1), str("user_id", 2), timestamp("expires", 3)),
			message("EmailClaim",
				str("owner_id", 1)),
		},
	}

	deps := &protoregistry.Files{}
	if err := deps.RegisterFile(timestamppb.File_google_protobuf_timestamp_proto); err != nil {
		panic(fmt.Sprintf("while registering timestamp.proto: %v", err))
	}
	fd, err := protodesc.NewFile(file, deps)
	if err != nil {
		panic(fmt.Sprintf("while building records descriptor: %v", err))
	}
	return fd
}

// record wraps one dynamic message, addressing fields by name.
type record struct {
	m *dynamicpb.Message
}

func newRecord(name protoreflect.Name) record {
	md := recordsFile.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("no message %s in %s", name, recordsFile.Path()))
	}
	return record{m: dynamicpb.NewMessage(md)}
}

func (r record) field(name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := r.m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("%s has no field %s", r.m.Descriptor().FullName(), name))
	}
	return fd
}

func (r record) marshal() ([]byte, error) {
	return proto.Marshal(r.m)
}

func unmarshalRecord(name protoreflect.Name, b []byte) (record, error) {
	r := newRecord(name)
	if err := proto.Unmarshal(b, r.m); err != nil {
		return record{}, err
	}
	return r, nil
}

// Zero values are left unset, as proto3 would encode them anyway.

func (r record) setString(name protoreflect.Name, v string) {
	if v != "" {
		r.m.Set(r.field(name), protoreflect.ValueOfString(v))
	}
}

func (r record) setInt(name protoreflect.Name, v int64) {
	if v != 0 {
		r.m.Set(r.field(name), protoreflect.ValueOfInt64(v))
	}
}

func (r record) setBool(name protoreflect.Name, v bool) {
	if v {
		r.m.Set(r.field(name), protoreflect.ValueOfBool(true))
	}
}

func (r record) setStrings(name protoreflect.Name, vs []string) {
	if len(vs) == 0 {
		return
	}
	list := r.m.Mutable(r.field(name)).List()
	for _, v := range vs {
		list.Append(protoreflect.ValueOfString(v))
	}
}

func (r record) setTime(name protoreflect.Name, t time.Time) {
	if t.IsZero() {
		return
	}
	r.setTimePtr(name, &t)
}

func (r record) setTimePtr(name protoreflect.Name, t *time.Time) {
	if t == nil {
		return
	}
	fd := r.field(name)
	ts := dynamicpb.NewMessage(fd.Message())
	ts.Set(ts.Descriptor().Fields().ByName("seconds"), protoreflect.ValueOfInt64(t.Unix()))
	ts.Set(ts.Descriptor().Fields().ByName("nanos"), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
	r.m.Set(fd, protoreflect.ValueOfMessage(ts))
}

func (r record) getString(name protoreflect.Name) string {
	return r.m.Get(r.field(name)).String()
}

func (r record) getInt(name protoreflect.Name) int64 {
	return r.m.Get(r.field(name)).Int()
}

func (r record) getBool(name protoreflect.Name) bool {
	return r.m.Get(r.field(name)).Bool()
}

func (r record) getStrings(name protoreflect.Name) []string {
	list := r.m.Get(r.field(name)).List()
	if list.Len() == 0 {
		return nil
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).String())
	}
	return out
}

func (r record) getTimePtr(name protoreflect.Name) *time.Time {
	fd := r.field(name)
	if !r.m.Has(fd) {
		return nil
	}
	ts := r.m.Get(fd).Message()
	fields := ts.Descriptor().Fields()
	t := time.Unix(ts.Get(fields.ByName("seconds")).Int(), ts.Get(fields.ByName("nanos")).Int()).UTC()
	return &t
}

func (r record) getTime(name protoreflect.Name) time.Time {
	if t := r.getTimePtr(name); t != nil {
		return *t
	}
	return time.Time{}
}

func requestRecord(v *dbtypes.Request) record {
	r := newRecord("Request")
	r.setString("id", v.ID)
	r.setString("requester_id", v.RequesterID)
	r.setString("patient_name", v.PatientName)
	r.setInt("patient_age", v.PatientAge)
	r.setString("patient_gender", v.PatientGender)
	r.setString("hospital", v.Hospital)
	r.setString("reason", v.Reason)
	r.setString("blood_group", v.BloodGroup)
	r.setBool("any_group_accepted", v.AnyGroupAccepted)
	r.setInt("units_needed", v.UnitsNeeded)
	r.setInt("units_donated", v.UnitsDonated)
	r.setString("status", string(v.Status))
	r.setTime("created_at", v.CreatedAt)
	r.setTime("updated_at", v.UpdatedAt)
	r.setBool("completion_notified", v.CompletionNotified)
	return r
}

func (r record) request() *dbtypes.Request {
	return &dbtypes.Request{
		ID:                 r.getString("id"),
		RequesterID:        r.getString("requester_id"),
		PatientName:        r.getString("patient_name"),
		PatientAge:         r.getInt("patient_age"),
		PatientGender:      r.getString("patient_gender"),
		Hospital:           r.getString("hospital"),
		Reason:             r.getString("reason"),
		BloodGroup:         r.getString("blood_group"),
		AnyGroupAccepted:   r.getBool("any_group_accepted"),
		UnitsNeeded:        r.getInt("units_needed"),
		UnitsDonated:       r.getInt("units_donated"),
		Status:             dbtypes.RequestStatus(r.getString("status")),
		CreatedAt:          r.getTime("created_at"),
		UpdatedAt:          r.getTime("updated_at"),
		CompletionNotified: r.getBool("completion_notified"),
	}
}

func donorRecord(v *dbtypes.Donor) record {
	r := newRecord("Donor")
	r.setString("id", v.ID)
	r.setString("email", v.Email)
	r.setString("name", v.Name)
	r.setString("phone", v.Phone)
	r.setString("city", v.City)
	r.setString("blood_group", v.BloodGroup)
	r.setTimePtr("last_donation_date", v.LastDonationDate)
	r.setTime("created_at", v.CreatedAt)
	return r
}

func (r record) donor() *dbtypes.Donor {
	return &dbtypes.Donor{
		ID:               r.getString("id"),
		Email:            r.getString("email"),
		Name:             r.getString("name"),
		Phone:            r.getString("phone"),
		City:             r.getString("city"),
		BloodGroup:       r.getString("blood_group"),
		LastDonationDate: r.getTimePtr("last_donation_date"),
		CreatedAt:        r.getTime("created_at"),
	}
}

func donationRecord(v *dbtypes.Donation) record {
	r := newRecord("Donation")
	r.setString("id", v.ID)
	r.setString("request_id", v.RequestID)
	r.setString("donor_id", v.DonorID)
	r.setString("donor_otp", v.DonorOTP)
	r.setString("requester_otp", v.RequesterOTP)
	r.setBool("donor_side_verified", v.DonorSideVerified)
	r.setBool("requester_side_verified", v.RequesterSideVerified)
	r.setTime("created_at", v.CreatedAt)
	r.setTimePtr("completed_at", v.CompletedAt)
	r.setTimePtr("cancelled_at", v.CancelledAt)
	r.setString("cancel_reason", v.CancelReason)
	return r
}

func (r record) donation() *dbtypes.Donation {
	return &dbtypes.Donation{
		ID:                    r.getString("id"),
		RequestID:             r.getString("request_id"),
		DonorID:               r.getString("donor_id"),
		DonorOTP:              r.getString("donor_otp"),
		RequesterOTP:          r.getString("requester_otp"),
		DonorSideVerified:     r.getBool("donor_side_verified"),
		RequesterSideVerified: r.getBool("requester_side_verified"),
		CreatedAt:             r.getTime("created_at"),
		CompletedAt:           r.getTimePtr("completed_at"),
		CancelledAt:           r.getTimePtr("cancelled_at"),
		CancelReason:          r.getString("cancel_reason"),
	}
}

func userRecord(v *dbtypes.User) record {
	r := newRecord("User")
	r.setString("id", v.ID)
	r.setString("email", v.Email)
	r.setString("display_name", v.DisplayName)
	r.setString("password_hash", v.PasswordHash)
	r.setStrings("roles", v.Roles)
	return r
}

func (r record) user() *dbtypes.User {
	return &dbtypes.User{
		ID:           r.getString("id"),
		Email:        r.getString("email"),
		DisplayName:  r.getString("display_name"),
		PasswordHash: r.getString("password_hash"),
		Roles:        r.getStrings("roles"),
	}
}

func sessionRecord(v *dbtypes.Session) record {
	r := newRecord("Session")
	r.setString("cookie", v.Cookie)
	r.setString("user_id", v.UserID)
	r.setTime("expires", v.Expires)
	return r
}

func (r record) session() *dbtypes.Session {
	return &dbtypes.Session{
		Cookie:  r.getString("cookie"),
		UserID:  r.getString("user_id"),
		Expires: r.getTime("expires"),
	}
}

func emailClaimRecord(ownerID string) record {
	r := newRecord("EmailClaim")
	r.setString("owner_id", ownerID)
	return r
}
