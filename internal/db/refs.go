/******************************************************************************
*
*  Copyright 2024 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

package db

// Level identifies a charger's classification, as defined in spec.md §3.
type Level string

// Enum values for Level.
const (
	LevelDCFast Level = "dcfast"
	LevelL2     Level = "level2"
	LevelL1     Level = "level1"
)

// Connector identifies a connector type exposed by a station.
type Connector string

// Enum values for Connector.
const (
	ConnectorTesla      Connector = "TESLA"
	ConnectorJ1772      Connector = "J1772"
	ConnectorJ1772Combo Connector = "J1772COMBO"
	ConnectorChademo    Connector = "CHADEMO"
	ConnectorOther      Connector = "OTHER"
)

// RegionKind distinguishes the three aggregate resolutions of spec.md §3.
type RegionKind string

// Enum values for RegionKind.
const (
	RegionState  RegionKind = "state"
	RegionCounty RegionKind = "county"
	RegionZip    RegionKind = "zip"
)

// StationID is the stable external identifier from the upstream registry.
// This typedef distinguishes it from other int64-valued IDs in the schema.
type StationID int64
