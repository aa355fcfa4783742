package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	busType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bus",
		Fields: graphql.Fields{
			"id":                    &graphql.Field{Type: graphql.Int},
			"code":                  &graphql.Field{Type: graphql.String},
			"route":                 &graphql.Field{Type: graphql.String},
			"seats_total":           &graphql.Field{Type: graphql.Int},
			"seats_available":       &graphql.Field{Type: graphql.Int},
			"status":                &graphql.Field{Type: graphql.String},
			"current_location_name": &graphql.Field{Type: graphql.String},
			"location":              &graphql.Field{Type: geoPointType},
			"updated_at":            &graphql.Field{Type: graphql.String},
		},
	})

	candidateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyGeofence",
		Fields: graphql.Fields{
			"index":      &graphql.Field{Type: graphql.Int},
			"name":       &graphql.Field{Type: graphql.String},
			"src_file":   &graphql.Field{Type: graphql.String},
			"centroid":   &graphql.Field{Type: geoPointType},
			"distance_m": &graphql.Field{Type: graphql.Float},
		},
	})

	resolutionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Resolution",
		Fields: graphql.Fields{
			"kind":             &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"checked_features": &graphql.Field{Type: graphql.Int},
			"matched_index":    &graphql.Field{Type: graphql.Int},
			"src_file":         &graphql.Field{Type: graphql.String},
			"nearest":          &graphql.Field{Type: graphql.NewList(candidateType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"buses": &graphql.Field{
				Type:        graphql.NewList(busType),
				Description: "All buses ordered by code",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					buses, err := deps.Buses.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(buses))
					for i := range buses {
						out[i] = busObject(&buses[i])
					}
					return out, nil
				},
			},
			"bus": &graphql.Field{
				Type:        busType,
				Description: "One bus by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					bus, err := deps.Buses.Get(p.Context, int64(id))
					if err != nil {
						return nil, err
					}
					return busObject(bus), nil
				},
			},
			"resolveLocation": &graphql.Field{
				Type:        resolutionType,
				Description: "Resolve a coordinate against the loaded geofences",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat, _ := p.Args["lat"].(float64)
					lng, _ := p.Args["lng"].(float64)
					pt := domain.GeoPoint{Lat: lat, Lon: lng}
					if err := pt.Validate(); err != nil {
						return nil, err
					}
					return resolutionObject(deps.Resolver.ResolveCurrent(p.Context, pt)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

func pointObject(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lat": p.Lat, "lng": p.Lon}
}

func busObject(b *domain.Bus) map[string]interface{} {
	obj := map[string]interface{}{
		"id":              int(b.ID),
		"code":            b.Code,
		"route":           b.Route,
		"seats_total":     b.SeatsTotal,
		"seats_available": b.SeatsAvailable,
		"status":          string(b.Status),
		"updated_at":      b.UpdatedAt.Format(time.RFC3339),
	}
	if b.Location != nil {
		obj["current_location_name"] = b.Location.Name
		obj["location"] = pointObject(b.Location.Point)
	}
	return obj
}

func resolutionObject(r domain.Resolution) map[string]interface{} {
	obj := map[string]interface{}{
		"kind":             string(r.Kind),
		"checked_features": r.Checked,
	}
	if name, ok := r.ServerName(); ok {
		obj["name"] = name
	}
	if r.Match != nil {
		obj["matched_index"] = r.Match.Feature.Index
		obj["src_file"] = r.Match.Feature.SourceID
	}
	nearest := make([]map[string]interface{}, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		n := map[string]interface{}{
			"index":      c.Feature.Index,
			"src_file":   c.Feature.SourceID,
			"centroid":   pointObject(c.Centroid),
			"distance_m": c.DistanceMeters,
		}
		if c.Name != "" {
			n["name"] = c.Name
		}
		nearest = append(nearest, n)
	}
	obj["nearest"] = nearest
	return obj
}

// GraphQLHandler serves read-only queries over buses and geofences.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
