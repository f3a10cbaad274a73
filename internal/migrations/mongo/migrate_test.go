package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexes_UniqueConstraints(t *testing.T) {
	driverUser := DriversIndexes[0]
	if driverUser.Options == nil || driverUser.Options.Unique == nil || !*driverUser.Options.Unique {
		t.Error("drivers user_id index must be unique")
	}

	paid := PaymentsIndexes[0]
	if paid.Options == nil || paid.Options.Unique == nil || !*paid.Options.Unique {
		t.Fatal("payments booking_id index must be unique")
	}
	filter, ok := paid.Options.PartialFilterExpression.(bson.M)
	if !ok {
		t.Fatalf("payments booking_id partial filter = %T, want bson.M", paid.Options.PartialFilterExpression)
	}
	if filter["status"] == nil {
		t.Error("payments booking_id index must be restricted to settled payments")
	}
}

func TestIndexes_ConflictLookupLeadsWithCar(t *testing.T) {
	keys, ok := BookingsIndexes[0].Keys.(bson.D)
	if !ok || len(keys) == 0 {
		t.Fatalf("unexpected keys %v", BookingsIndexes[0].Keys)
	}
	if keys[0].Key != "car_id" {
		t.Errorf("first booking index leads with %s, want car_id", keys[0].Key)
	}
}
